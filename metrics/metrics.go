package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

var (
	METRICS_ENDPOINT = getEndpoint()
	METRICS_TOKEN    = os.Getenv("METRICS_TOKEN")
)

func getEndpoint() string {
	if e := os.Getenv("METRICS_ENDPOINT"); e != "" {
		return e
	}
	return "https://metrics-worker.cloudflare-cdnjs.workers.dev"
}

type IncMetricPayload struct {
	Name   string                 `json:"name"`
	Labels IncMetricPayloadLabels `json:"labels"`
	Value  int                    `json:"value"`
}

type IncMetricPayloadLabels struct {
	Type *string `json:"type"`
}

// Enabled reports whether a token to publish metrics is configured.
func Enabled() bool {
	return METRICS_TOKEN != ""
}

func NewImagesAttempted(n int) error {
	t := "attempted"

	return sendMetrics(&IncMetricPayload{
		Name: "png_optimizer_images",
		Labels: IncMetricPayloadLabels{
			Type: &t,
		},
		Value: n,
	})
}

func NewImagesFailed(n int) error {
	t := "failed"

	return sendMetrics(&IncMetricPayload{
		Name: "png_optimizer_images",
		Labels: IncMetricPayloadLabels{
			Type: &t,
		},
		Value: n,
	})
}

func NewRunCompleted() error {
	return sendMetrics(&IncMetricPayload{
		Name:   "png_optimizer_run",
		Labels: IncMetricPayloadLabels{},
		Value:  1,
	})
}

func sendMetrics(payload *IncMetricPayload) error {
	json, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshall payload")
	}

	req, err := http.NewRequest("POST", METRICS_ENDPOINT, bytes.NewBuffer(json))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", METRICS_TOKEN))
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		return errors.Errorf("metrics endpoint returned %s", resp.Status)
	}
	return nil
}
