package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/model"
	"github.com/LeonardoBeccarini/agriassist/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/agriassist/internal/services/recommender"
)

type recommendOptions struct {
	root *rootOptions

	params model.InputParameters
	token  string
	crop   string

	recommenderURL string
	blynkURL       string
	seed           int64
	timeout        time.Duration
	asJSON         bool
}

// flag -> campo del form
var paramFlags = []struct {
	name, field, usage string
}{
	{"nitrogen", model.FieldNitrogen, "Nitrogen (N) in kg/ha"},
	{"phosphorus", model.FieldPhosphorus, "Phosphorus (P) in kg/ha"},
	{"potassium", model.FieldPotassium, "Potassium (K) in kg/ha"},
	{"temperature", model.FieldTemperature, "Temperature in °C"},
	{"humidity", model.FieldHumidity, "Relative humidity in %"},
	{"ph", model.FieldPH, "Soil pH (0-14)"},
	{"rainfall", model.FieldRainfall, "Rainfall in mm"},
}

func newRecommendCmd(root *rootOptions) *cobra.Command {
	o := &recommendOptions{root: root, params: model.DefaultParameters()}
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend crops and fertilizers for a field",
		Long: `Runs the recommendation flow: the three best crops for the given soil and
weather values, then two fertilizers for the chosen crop.

With --token the temperature, humidity and rainfall are read from the Blynk
device first; any parameter flag given explicitly overrides the reading.

Examples:
  agriassist recommend --nitrogen 80 --ph 6.2
  agriassist recommend --token $BLYNK_TOKEN --crop maize
  agriassist recommend --recommender-url http://localhost:5010 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.token == "" {
				o.token = os.Getenv("BLYNK_TOKEN")
			}
			if o.recommenderURL == "" {
				o.recommenderURL = os.Getenv("RECOMMENDER_URL")
			}
			return o.run(cmd)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&o.params.Nitrogen, "nitrogen", o.params.Nitrogen, paramFlags[0].usage)
	f.Float64Var(&o.params.Phosphorus, "phosphorus", o.params.Phosphorus, paramFlags[1].usage)
	f.Float64Var(&o.params.Potassium, "potassium", o.params.Potassium, paramFlags[2].usage)
	f.Float64Var(&o.params.Temperature, "temperature", o.params.Temperature, paramFlags[3].usage)
	f.Float64Var(&o.params.Humidity, "humidity", o.params.Humidity, paramFlags[4].usage)
	f.Float64Var(&o.params.PH, "ph", o.params.PH, paramFlags[5].usage)
	f.Float64Var(&o.params.Rainfall, "rainfall", o.params.Rainfall, paramFlags[6].usage)

	f.StringVar(&o.token, "token", "", "Blynk device token; switches to sensor-assisted entry (env BLYNK_TOKEN)")
	f.StringVar(&o.crop, "crop", "", "Crop to get fertilizers for (default: the top suggestion)")
	f.StringVar(&o.recommenderURL, "recommender-url", "", "Remote recommendation service (default: in-process, env RECOMMENDER_URL)")
	f.StringVar(&o.blynkURL, "blynk-url", app.DefaultBlynkURL, "Blynk external API base URL")
	f.Int64Var(&o.seed, "seed", 0, "Seed for the in-process engine (0 = random)")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "Timeout for each network step")
	f.BoolVar(&o.asJSON, "json", false, "Print the final session state as JSON")
	return cmd
}

func (o *recommendOptions) recommender(log *zap.Logger) (flow.RecommendationService, error) {
	if o.recommenderURL != "" {
		return app.NewRecommendationClient(app.NewUpstream("recommendation", o.recommenderURL, o.timeout, nil, nil)), nil
	}
	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return recommender.NewEngine(recommender.EngineConfig{Source: rand.NewSource(seed), Logger: log})
}

func (o *recommendOptions) run(cmd *cobra.Command) error {
	log := o.root.logger()
	defer func() { _ = log.Sync() }()

	recs, err := o.recommender(log)
	if err != nil {
		return err
	}
	opts := flow.Options{Variant: flow.VariantDirect, Recommender: recs, Logger: log}
	if o.token != "" {
		opts.Variant = flow.VariantSensor
		opts.SensorToken = o.token
		opts.Sensor = app.NewBlynkClient(app.BlynkConfig{BaseURL: o.blynkURL, Timeout: o.timeout}, nil, nil, log)
	}
	ctrl, err := flow.New(opts)
	if err != nil {
		return err
	}

	step := func(fn func(ctx context.Context) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return err
		}
		if st := ctrl.State(); st.Phase == flow.PhaseFailed {
			return errors.New(st.LastError)
		}
		return nil
	}

	raw := o.params.Raw()
	if opts.Variant == flow.VariantSensor {
		if err := step(func(ctx context.Context) error { return ctrl.RequestSensorData(ctx, o.token) }); err != nil {
			return err
		}
		// sopra le letture solo i flag passati esplicitamente
		raw = model.RawParameters{}
		for _, pf := range paramFlags {
			if cmd.Flags().Changed(pf.name) {
				raw[pf.field] = o.params.Raw()[pf.field]
			}
		}
	}
	if err := step(func(ctx context.Context) error { return ctrl.SubmitParameters(ctx, raw) }); err != nil {
		return err
	}

	crop := o.crop
	if crop == "" {
		crop = ctrl.State().CropSuggestions[0].Name
	}
	if err := step(func(ctx context.Context) error { return ctrl.SelectCropForFertilizer(ctx, crop) }); err != nil {
		return err
	}

	st := ctrl.State()
	if o.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return printState(cmd.OutOrStdout(), st)
}

func printState(out io.Writer, st flow.SessionState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p := st.InputParameters
	if st.Variant == flow.VariantSensor && p != nil {
		fmt.Fprintf(w, "Sensor readings:\ttemperature %.1f °C, humidity %.1f %%, rainfall %.1f mm\n", p.Temperature, p.Humidity, p.Rainfall)
	}
	if p != nil {
		fmt.Fprintf(w, "Parameters:\tN %.0f  P %.0f  K %.0f  pH %.1f\n", p.Nitrogen, p.Phosphorus, p.Potassium, p.PH)
	}
	fmt.Fprintln(w, "\nRecommended crops:")
	for i, c := range st.CropSuggestions {
		fmt.Fprintf(w, "  %d. %s\t%.1f%%\n", i+1, c.Name, c.Score*100)
	}
	if st.SelectedCrop != nil {
		fmt.Fprintf(w, "\nFertilizers for %s:\n", st.SelectedCrop.Name)
	}
	for _, f := range st.FertilizerSuggestions {
		fmt.Fprintf(w, "  - %s\t%s\n", f.Name, f.DosageRange)
	}
	return w.Flush()
}
