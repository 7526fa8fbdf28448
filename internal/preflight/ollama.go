package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// tagsResponse is the shape of Ollama's /api/tags listing.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckOllama probes the Ollama host.
func (c *Checker) CheckOllama(ctx context.Context, baseURL string) CheckResult {
	result := CheckResult{
		Name: "ollama",
	}

	if _, err := c.listModels(ctx, baseURL); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unreachable at %s (answers degrade to extractive passages)", baseURL)
		result.Details = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("reachable at %s", baseURL)
	return result
}

// CheckModel verifies a model is pulled on the Ollama host. name labels the
// check ("embedding_model" or "llm_model").
func (c *Checker) CheckModel(ctx context.Context, baseURL, model, name string) CheckResult {
	result := CheckResult{
		Name: name,
	}

	models, err := c.listModels(ctx, baseURL)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot verify %s: ollama unreachable", model)
		result.Details = err.Error()
		return result
	}

	for _, m := range models {
		if m == model || strings.TrimSuffix(m, ":latest") == model {
			result.Status = StatusPass
			result.Message = model
			return result
		}
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("%s not pulled", model)
	result.Details = fmt.Sprintf("run: ollama pull %s", model)
	return result
}

func (c *Checker) listModels(ctx context.Context, baseURL string) ([]string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet,
		strings.TrimSuffix(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
