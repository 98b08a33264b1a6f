package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"govigil/adapters/excel"
	"govigil/app"
	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/config"
	"govigil/internal/exec"
	"govigil/internal/testkit"
	"govigil/ports"
)

func main() {
	var (
		file      = flag.String("file", "", "case table file (.xlsx or .csv); synthetic data when empty")
		cases     = flag.Int("cases", 10000, "synthetic dataset size")
		seed      = flag.Int64("seed", 1, "synthetic dataset seed")
		op        = flag.String("op", "top", "operation: compute, rank, top, cluster, dedupe")
		drug      = flag.String("drug", "", "drug term (compute, cluster)")
		reaction  = flag.String("reaction", "", "reaction term (compute, cluster)")
		topK      = flag.Int("top", 10, "number of candidates")
		k         = flag.Int("k", 0, "cluster count override")
		mode      = flag.String("mode", "exact", "duplicate detection mode: exact or near")
		threshold = flag.Float64("threshold", 0, "near-duplicate similarity threshold override")
		fromDate  = flag.String("from", "", "only count cases reported on or after this date, YYYY-MM-DD (compute)")
		toDate    = flag.String("to", "", "only count cases reported on or before this date, YYYY-MM-DD (compute)")
	)
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		logrus.Debug(".env loaded")
	}
	logrus.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fail("failed to load configuration: %v", err)
	}

	table, err := loadTable(*file, *cases, *seed)
	if err != nil {
		fail("failed to load case table: %v", err)
	}

	cache, err := exec.NewCache(cfg.Exec.CacheSize, nil)
	if err != nil {
		fail("failed to create cache: %v", err)
	}
	svc := app.NewAnalysisService(cfg, testkit.NewTestKit().RNGAdapter())
	router := exec.NewRouter(cfg.Exec, cache, app.NewLocalVenue(svc), nil)

	req, err := buildRequest(*op, *drug, *reaction, *topK, *k, *mode, *threshold, *fromDate, *toDate)
	if err != nil {
		fail("%v", err)
	}
	req.Table = table

	result, err := router.Execute(context.Background(), req)
	if err != nil {
		if partial, ok := core.PartialResult(err); ok {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			printJSON(partial)
			os.Exit(2)
		}
		fail("%v", err)
	}
	printJSON(result)
}

func buildRequest(op, drug, reaction string, topK, k int, mode string, threshold float64, fromDate, toDate string) (ports.ExecRequest, error) {
	switch op {
	case "compute":
		if drug == "" || reaction == "" {
			return ports.ExecRequest{}, fmt.Errorf("compute requires -drug and -reaction")
		}
		params := map[string]interface{}{"drug": drug, "reaction": reaction}
		if fromDate != "" {
			params["from_date"] = fromDate
		}
		if toDate != "" {
			params["to_date"] = toDate
		}
		return ports.ExecRequest{
			Op:     signal.OpComputeSignal,
			Params: params,
		}, nil
	case "rank":
		return ports.ExecRequest{
			Op:     signal.OpRankCandidates,
			Params: map[string]interface{}{"top_k": topK},
		}, nil
	case "top":
		return ports.ExecRequest{
			Op:     signal.OpTopSignals,
			Params: map[string]interface{}{"top_k": topK},
		}, nil
	case "cluster":
		if drug == "" || reaction == "" {
			return ports.ExecRequest{}, fmt.Errorf("cluster requires -drug and -reaction")
		}
		params := map[string]interface{}{"drug": drug, "reaction": reaction}
		if k > 0 {
			params["k"] = k
		}
		return ports.ExecRequest{Op: signal.OpClusterSignal, Params: params}, nil
	case "dedupe":
		params := map[string]interface{}{"mode": mode}
		if threshold > 0 {
			params["threshold"] = threshold
		}
		return ports.ExecRequest{Op: signal.OpFindDuplicates, Params: params}, nil
	default:
		return ports.ExecRequest{}, fmt.Errorf("unknown operation %q", op)
	}
}

func loadTable(file string, cases int, seed int64) (*signal.CaseTable, error) {
	if file != "" {
		return excel.NewCaseReader(file).Read()
	}
	return testkit.GenerateCaseTable(testkit.GeneratorConfig{
		Cases: cases,
		Seed:  seed,
		InjectedSignals: []testkit.InjectedSignal{
			{Drug: "nifedipine", Reaction: "gingival hyperplasia", Rate: 0.005, Serious: true},
		},
		DuplicateRate: 0.01,
	}), nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("failed to encode result: %v", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
