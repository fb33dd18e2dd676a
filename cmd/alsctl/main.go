// alsctl - inspect the ALS correction stack on a running device
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaap/device-oneplus-sm8150-common/internal/calibration"
	"github.com/yaap/device-oneplus-sm8150-common/internal/config"
	"github.com/yaap/device-oneplus-sm8150-common/internal/correction"
	"github.com/yaap/device-oneplus-sm8150-common/internal/grpcclient"
	"github.com/yaap/device-oneplus-sm8150-common/internal/sampler"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
)

var cfg *config.Config

func main() {
	cfg = config.Load()

	rootCmd := &cobra.Command{
		Use:   "alsctl",
		Short: "Inspect the ambient light sensor correction stack",
		Long: `alsctl talks to the screen sampler and reads the calibration the
correction daemon would use, so a misbehaving auto-brightness can be
traced to the sampler, the calibration data or the correction itself.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "device profile JSON (defaults to the stock panel)")
	rootCmd.PersistentFlags().StringVar(&cfg.CalibrationDir, "calibration-dir", cfg.CalibrationDir, "persisted factory calibration directory")
	rootCmd.PersistentFlags().StringVar(&cfg.BacklightDir, "backlight-dir", cfg.BacklightDir, "backlight sysfs directory")

	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(calibrationCmd())
	rootCmd.AddCommand(correctCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// probeCmd performs sampler round trips
func probeCmd() *cobra.Command {
	var (
		socket   string
		count    int
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Ask the sampler for the average color above the sensor",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sampler.NewClient(sampler.ClientConfig{Path: socket, Timeout: timeout})
			clock := timeutil.BootClock{}

			for i := 0; count <= 0 || i < count; i++ {
				if i > 0 {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(interval):
					}
				}
				start := time.Now()
				s, err := client.Sample(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "error: %v\n", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "r=%d g=%d b=%d age=%v rtt=%v\n",
					s.R, s.G, s.B, timeutil.Since(clock, s.Timestamp).Round(time.Millisecond),
					time.Since(start).Round(time.Microsecond))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", cfg.SamplerSocket, "sampler socket")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of probes, 0 for endless")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between probes")
	cmd.Flags().DurationVar(&timeout, "timeout", cfg.SamplerTimeout, "round trip timeout")
	return cmd
}

// healthCmd queries the sampler health socket
func healthCmd() *cobra.Command {
	var (
		socket string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the sampler's capture health",
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := grpcclient.New(socket, grpcclient.DefaultConfig())
			if err != nil {
				return err
			}
			defer func() { _ = hc.Close() }()

			if watch {
				return hc.Watch(cmd.Context(), sampler.HealthService, func(s grpcclient.Status) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", time.Now().Format(time.TimeOnly), s)
				})
			}
			st, err := hc.Check(cmd.Context(), sampler.HealthService)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", cfg.SamplerHealthSocket, "sampler health socket")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "stream status changes")
	return cmd
}

// calibrationCmd prints the derived calibration
func calibrationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibration",
		Short: "Print the calibration derived from the profile and persisted data",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := calibration.LoadProfile(cfg.ProfilePath)
			if err != nil {
				return err
			}
			store := calibration.NewFileStore(cfg.CalibrationDir, cfg.BacklightDir)
			cal := calibration.Load(profile, store)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "corrupt\t%v\n", cal.Corrupt())
			fmt.Fprintf(w, "max lux (r g b w)\t%s\n", joinFloats(cal.MaxLux[:]))
			fmt.Fprintf(w, "post multiplier\t%s\n", joinFloats(cal.PostMultiplier[:]))
			fmt.Fprintf(w, "aging factor\t%.4f\n", cal.AgingFactor)
			fmt.Fprintf(w, "inverse gain\t%s\n", joinFloats(cal.InverseGain[:]))
			fmt.Fprintf(w, "calibration gain\t%g\n", cal.CalibGain)
			fmt.Fprintf(w, "agc threshold\t%g\n", cal.AGCThreshold)
			fmt.Fprintf(w, "bias\t%g\n", cal.Bias)
			fmt.Fprintf(w, "max brightness\t%g\n", cal.MaxBrightness)
			fmt.Fprintf(w, "brightness\t%g\n", calibration.StoreBacklight{Store: store}.Brightness())
			fmt.Fprintln(w, "\nkey\tsource")
			for _, key := range calibrationKeys {
				fmt.Fprintf(w, "%s\t%s\n", key, store.Path(key))
			}
			fmt.Fprintln(w, "\nband\tmiddle\tmin (raw)\tmax (raw)")
			for i, b := range cal.Hysteresis {
				fmt.Fprintf(w, "%d\t%g\t%g\t%g\n", i, b.Middle, b.Min, b.Max)
			}
			return w.Flush()
		},
	}
}

var calibrationKeys = []string{
	calibration.KeyRedMaxLux,
	calibration.KeyGreenMaxLux,
	calibration.KeyBlueMaxLux,
	calibration.KeyWhiteMaxLux,
	calibration.KeySensorGainCoefficient,
	calibration.KeyCalibrationGainCoefficient,
	calibration.KeySensorBias,
	calibration.KeyScreenOnHours,
	calibration.KeyBacklightMaxBrightness,
	calibration.KeyBacklightCurrentBrightness,
}

// staticSampler replays one screen color.
type staticSampler struct{ s sampler.Sample }

func (f staticSampler) Sample(context.Context) (sampler.Sample, error) {
	s := f.s
	s.Timestamp = timeutil.BootClock{}.Nanotime()
	return s, nil
}

type fixedBacklight float64

func (b fixedBacklight) Brightness() float64 { return float64(b) }

// correctCmd runs one reading through a fresh engine
func correctCmd() *cobra.Command {
	var (
		raw       float64
		indicator float64
		rgb       string
		backlight float64
		hbr       bool
	)
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Correct one raw reading for a given screen color and backlight",
		Example: `  alsctl correct --raw 600 --rgb 255,255,255 --backlight 1023
  alsctl correct --raw 1200 --indicator 40 --rgb 20,20,20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseRGB(rgb)
			if err != nil {
				return err
			}
			profile, err := calibration.LoadProfile(cfg.ProfilePath)
			if err != nil {
				return err
			}
			store := calibration.NewFileStore(cfg.CalibrationDir, cfg.BacklightDir)

			var bl calibration.Backlight = calibration.StoreBacklight{Store: store}
			if cmd.Flags().Changed("backlight") {
				bl = fixedBacklight(backlight)
			}
			engine := correction.New(correction.Options{
				Profile:             profile,
				Store:               store,
				Backlight:           bl,
				Sampler:             staticSampler{s: s},
				HighBrightnessRange: hbr,
			})

			ev := &correction.Event{SensorHandle: 1}
			ev.Data[correction.ScalarIndex] = raw
			ev.Data[correction.ModeIndex] = indicator
			res := engine.Process(cmd.Context(), ev)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "outcome\t%s\n", res.Outcome)
			fmt.Fprintf(w, "raw\t%g\n", res.Raw)
			fmt.Fprintf(w, "lux\t%g\n", res.Lux)
			fmt.Fprintf(w, "gain\t%g\n", res.Gain)
			fmt.Fprintf(w, "band\t[%g, %g]\n", res.BandMin, res.BandMax)
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&raw, "raw", 0, "raw sensor reading")
	cmd.Flags().Float64Var(&indicator, "indicator", 1, "sensor gain-state channel")
	cmd.Flags().StringVar(&rgb, "rgb", "0,0,0", "average screen color above the sensor")
	cmd.Flags().Float64Var(&backlight, "backlight", 0, "backlight level (defaults to the live value)")
	cmd.Flags().BoolVar(&hbr, "hbr", cfg.HighBrightnessRange, "sensor is in high-brightness-range mode")
	_ = cmd.MarkFlagRequired("raw")
	return cmd
}

func parseRGB(s string) (sampler.Sample, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return sampler.Sample{}, fmt.Errorf("rgb %q: want r,g,b", s)
	}
	var v [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return sampler.Sample{}, fmt.Errorf("rgb %q: %w", s, err)
		}
		v[i] = uint32(n)
	}
	return sampler.Sample{R: v[0], G: v[1], B: v[2]}, nil
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return strings.Join(parts, " ")
}
