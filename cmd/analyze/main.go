package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"phishing-detector/internal/extract"
	"phishing-detector/internal/pipeline"
	"phishing-detector/internal/render"
	"phishing-detector/internal/util"
)

func main() {
	endpoint := flag.String("endpoint", pipeline.DefaultEndpoint, "analysis endpoint URL")
	attempts := flag.Int("attempts", 0, "max attempts per analysis (0 = default)")
	delay := flag.Duration("delay", 0, "delay between retries (0 = default)")
	timeout := flag.Duration("timeout", 0, "per-attempt timeout (0 = default)")
	input := flag.String("file", "", "read message from file instead of stdin")
	asJSON := flag.Bool("json", false, "print the normalized report as JSON")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	var reader io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			logrus.Fatalf("open input: %v", err)
		}
		defer f.Close()
		reader = f
	}

	text, err := extract.New().Extract(reader)
	if err != nil && !errors.Is(err, extract.ErrNoContent) {
		logrus.Fatalf("read input: %v", err)
	}

	client := pipeline.NewClient(pipeline.Config{
		Endpoint:    *endpoint,
		MaxAttempts: *attempts,
		RetryDelay:  *delay,
		Timeout:     *timeout,
	})

	timer := util.StartTimer()
	report, err := client.Analyze(context.Background(), text)
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) {
			fmt.Fprint(os.Stderr, render.Failure(failure))
		} else {
			fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		}
		os.Exit(1)
	}
	logrus.Debugf("analysis finished in %s", timer.Elapsed().Round(time.Millisecond))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logrus.Fatalf("encode report: %v", err)
		}
	} else {
		fmt.Print(render.Text(report))
	}

	if report.RiskLevel == "high" {
		os.Exit(2)
	}
}
