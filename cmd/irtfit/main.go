// Command irtfit fits an IRT model to a CSV response matrix and writes the
// structured results as JSON.
//
// Usage:
//
//	irtfit -input responses.csv -model RSM -mode JMLE -output results.json
//
// The CSV's first row is read as item names; blank cells become missing
// responses.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/calibrix/irt-estimation-service/pkg/dichotomous"
	"github.com/calibrix/irt-estimation-service/pkg/models"
	"github.com/calibrix/irt-estimation-service/pkg/polytomous"
)

func main() {
	inputPath := flag.String("input", "", "CSV response matrix (first row: item names)")
	outputPath := flag.String("output", "", "output JSON path (default: stdout)")
	modelName := flag.String("model", "1PL", "model type: 1PL, 2PL, 3PL, RSM, PCM")
	modeName := flag.String("mode", "AUTO", "polytomous estimation mode: AUTO, MML, JMLE")
	configPath := flag.String("config", "", "optional engine config file")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "irtfit: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*inputPath, *outputPath, *modelName, *modeName, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "irtfit: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath, modelName, modeName, configPath string) error {
	modelType, err := models.ParseModelType(modelName)
	if err != nil {
		return err
	}

	matrix, itemNames, err := readMatrix(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	var result interface{}
	if modelType.IsPolytomous() {
		mode, err := models.ParseEstimationMode(modeName)
		if err != nil {
			return err
		}
		config := polytomous.NewConfig()
		if configPath != "" {
			if err := config.LoadFromFile(configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		engine := polytomous.NewEngine(config, models.LogSink{Logger: config.CreateLogger()})
		result, err = engine.Fit(matrix, modelType, itemNames, mode)
		if err != nil {
			return err
		}
	} else {
		config := dichotomous.NewConfig()
		if configPath != "" {
			if err := config.LoadFromFile(configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		engine := dichotomous.NewEngine(config, models.LogSink{Logger: config.CreateLogger()})
		result, err = engine.Fit(matrix, modelType, itemNames)
		if err != nil {
			return err
		}
	}

	return writeJSON(outputPath, result)
}

// readMatrix parses a CSV file into a response matrix. The header row
// supplies item names; blank or unparseable cells become NaN.
func readMatrix(path string) (models.ResponseMatrix, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("matrix needs a header row and at least one person row")
	}

	itemNames := records[0]
	matrix := make(models.ResponseMatrix, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]float64, len(itemNames))
		for j := range row {
			row[j] = math.NaN()
			if j < len(record) && record[j] != "" {
				if v, err := strconv.ParseFloat(record[j], 64); err == nil {
					row[j] = v
				}
			}
		}
		matrix = append(matrix, row)
	}

	return matrix, itemNames, nil
}

func writeJSON(path string, result interface{}) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(append(encoded, '\n'))
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
