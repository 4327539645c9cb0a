// cmd/tools/model-tool/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"loan-sanction/internal/common/config"
	"loan-sanction/internal/common/database"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/features"
	"loan-sanction/internal/inference"
	"loan-sanction/internal/model"
	"loan-sanction/internal/models"
	"loan-sanction/pkg/artifact"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	describeCmd := flag.NewFlagSet("describe", flag.ExitOnError)
	scoreCmd := flag.NewFlagSet("score", flag.ExitOnError)
	publishCmd := flag.NewFlagSet("publish", flag.ExitOnError)

	validatePath := validateCmd.String("path", "models/loan_rf_v1.json", "Path to model artifact")
	describePath := describeCmd.String("path", "models/loan_rf_v1.json", "Path to model artifact")

	scorePath := scoreCmd.String("path", "models/loan_rf_v1.json", "Path to model artifact")
	scoreInput := scoreCmd.String("input", "", "Path to an application JSON file (default: the form's initial values)")

	publishPath := publishCmd.String("path", "models/loan_rf_v1.json", "Path to model artifact")
	publishConfig := publishCmd.String("config", "", "Config file with database.postgres settings (default: configs/config.yaml)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateArtifact(os.Stdout, *validatePath)

	case "describe":
		describeCmd.Parse(os.Args[2:])
		err = describeArtifact(os.Stdout, *describePath)

	case "score":
		scoreCmd.Parse(os.Args[2:])
		var raw []byte
		if *scoreInput != "" {
			raw, err = os.ReadFile(*scoreInput)
			if err != nil {
				fmt.Printf("Error reading input: %v\n", err)
				os.Exit(1)
			}
		}
		err = scoreApplication(os.Stdout, *scorePath, raw)

	case "publish":
		publishCmd.Parse(os.Args[2:])
		err = publishArtifact(os.Stdout, *publishPath, *publishConfig)

	case "help":
		fallthrough
	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEngine loads the artifact through the same checks the server runs at boot.
func loadEngine(path string) (*inference.Engine, error) {
	engine := inference.NewEngine(features.DefaultTable, logger.NewNoOpLogger())
	if err := engine.Load(context.Background(), model.NewFileSource(path)); err != nil {
		return nil, err
	}
	return engine, nil
}

func validateArtifact(w io.Writer, path string) error {
	engine, err := loadEngine(path)
	if err != nil {
		return fmt.Errorf("artifact validation failed: %w", err)
	}
	info := engine.Info()
	fmt.Fprintf(w, "Artifact validation passed: %s %s (encoding %s)\n", info.Name, info.Version, info.EncodingVersion)
	return nil
}

func describeArtifact(w io.Writer, path string) error {
	a, err := artifact.Load(path)
	if err != nil {
		return err
	}
	return writeJSON(w, artifact.Describe(a))
}

type scoreOutput struct {
	models.PredictionResult
	models.PredictionMeta
}

func scoreApplication(w io.Writer, path string, raw []byte) error {
	engine, err := loadEngine(path)
	if err != nil {
		return err
	}

	if len(raw) == 0 {
		raw, err = json.Marshal(models.DefaultApplication())
		if err != nil {
			return err
		}
	}

	encoder, err := features.NewEncoder(features.DefaultTable)
	if err != nil {
		return err
	}
	predictor := inference.NewPredictor(encoder, engine, inference.NewShaper(inference.DefaultPrecision), logger.NewNoOpLogger())

	pred, err := predictor.Predict(context.Background(), raw)
	if err != nil {
		return err
	}
	return writeJSON(w, scoreOutput{PredictionResult: pred.Result, PredictionMeta: pred.Meta})
}

func publishArtifact(w io.Writer, path, configPath string) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	a, err := artifact.Parse(doc)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := model.Publish(ctx, pg.GetDB(), a, doc); err != nil {
		return err
	}
	fmt.Fprintf(w, "Published %s %s (encoding %s)\n", a.Name, a.Version, a.EncodingVersion)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func help() {
	fmt.Println("Usage: model-tool <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  validate -path <file>                 Check an artifact loads against encoding", features.DefaultTable.Version())
	fmt.Println("  describe -path <file>                 Print artifact metadata and tree statistics")
	fmt.Println("  score    -path <file> [-input <file>] Score one application (default: form initial values)")
	fmt.Println("  publish  -path <file> [-config <file>] Insert the artifact into the postgres model registry")
	fmt.Println("  help                                  Show this help message")
}
