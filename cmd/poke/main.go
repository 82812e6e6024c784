// Command poke runs the analyze, upload and poll flow against a deployed
// analysis API and prints the final job record.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"analysis-jobs-oci-serverless/pkg/client"
	"analysis-jobs-oci-serverless/pkg/job"
	"analysis-jobs-oci-serverless/pkg/logger"

	"github.com/joho/godotenv"
)

// dummyUpload is enough to trigger the processor; it will fail the job
// because the bytes are not a TIFF.
var dummyUpload = []byte("This is a test file to wake up the processor")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
	fmt.Println("PASS")
}

func run() error {
	_ = godotenv.Load()

	apiURL := flag.String("api", os.Getenv("ANALYSIS_API_URL"), "Base URL of the analysis API")
	file := flag.String("file", "", "TIFF to upload (default: dummy bytes)")
	lat := flag.Float64("lat", -10, "Latitude sent with the job")
	lon := flag.Float64("lon", -63, "Longitude sent with the job")
	bbox := flag.String("bbox", "", "north,south,east,west; sends the box center instead of -lat/-lon")
	quick := flag.Bool("quick", false, "Only create a job to check connectivity")
	contentType := flag.String("content-type", "image/tiff", "Content-Type of the upload")
	interval := flag.Duration("interval", client.DefaultPollInterval, "Poll interval")
	attempts := flag.Int("attempts", 20, "Maximum poll attempts")
	initialDelay := flag.Duration("initial-delay", 5*time.Second, "Wait before the first poll")
	flag.Parse()

	if *apiURL == "" {
		return fmt.Errorf("-api or ANALYSIS_API_URL is required")
	}

	log := logger.NewDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coords := job.Coordinates{"lat": *lat, "lon": *lon}
	if *bbox != "" {
		box, err := parseBoundingBox(*bbox)
		if err != nil {
			return err
		}
		coords = box.Center()
	}

	c := client.New(*apiURL, nil)

	if *quick {
		log.Info("Creating job", slog.String("api", *apiURL))
		created, err := c.Analyze(ctx, coords)
		if err != nil {
			return err
		}
		log.Info("Job created", slog.String("job_id", created.JobID), slog.Int("upload_url_len", len(created.UploadURL)))
		return nil
	}

	body, err := uploadBody(*file)
	if err != nil {
		return err
	}

	log.Info("Running analysis", slog.String("api", *apiURL))
	res, err := c.Run(ctx, coords, *contentType, body, client.PollOptions{
		Interval:     *interval,
		MaxAttempts:  *attempts,
		InitialDelay: *initialDelay,
		OnProgress: func(status job.Status, attempt int) {
			log.Info("Polled", slog.Int("attempt", attempt), slog.String("status", string(status)))
		},
	})
	if res != nil {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
	}
	return err
}

func uploadBody(path string) (io.Reader, error) {
	if path == "" {
		return bytes.NewReader(dummyUpload), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// Read fully so the request has a known length for presigned PUTs.
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return bytes.NewReader(data), nil
}

func parseBoundingBox(s string) (client.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return client.BoundingBox{}, fmt.Errorf("invalid -bbox %q: want north,south,east,west", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return client.BoundingBox{}, fmt.Errorf("invalid -bbox %q: %w", s, err)
		}
		v[i] = f
	}
	return client.BoundingBox{North: v[0], South: v[1], East: v[2], West: v[3]}, nil
}
