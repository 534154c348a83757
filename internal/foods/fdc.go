package foods

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nutriplan/internal/plan"
)

const defaultFDCBaseURL = "https://api.nal.usda.gov/fdc/v1"

// Nutrient numbers in the FoodData Central schema.
const (
	nutrientKcal    = "1008"
	nutrientProtein = "1003"
	nutrientCarbs   = "1005"
	nutrientFat     = "1004"
)

// FDC is the remote primary provider, a client for the USDA FoodData
// Central API.
type FDC struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewFDC creates a FoodData Central client. baseURL is overridable for
// tests; empty selects the public endpoint.
func NewFDC(apiKey, baseURL string) *FDC {
	if baseURL == "" {
		baseURL = defaultFDCBaseURL
	}
	return &FDC{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *FDC) Name() string                { return "fdc" }
func (f *FDC) Provenance() plan.Provenance { return plan.ProvenanceRemotePrimary }

type fdcNutrient struct {
	NutrientNumber string  `json:"nutrientNumber"`
	Value          float64 `json:"value"`
}

type fdcFood struct {
	FDCID         int64         `json:"fdcId"`
	Description   string        `json:"description"`
	FoodNutrients []fdcNutrient `json:"foodNutrients"`
}

// Search queries the generic (non-branded) food index.
func (f *FDC) Search(ctx context.Context, name string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("query", name)
	q.Set("dataType", "Foundation,SR Legacy")
	q.Set("pageSize", "5")

	var resp struct {
		Foods []fdcFood `json:"foods"`
	}
	if err := f.get(ctx, "/foods/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Foods))
	for _, food := range resp.Foods {
		out = append(out, Candidate{
			FoodID:      fmt.Sprintf("%d", food.FDCID),
			Description: food.Description,
			Nutrition:   nutrientsToVector(food.FoodNutrients),
		})
	}
	return out, nil
}

// Food fetches one food record by FDC id.
func (f *FDC) Food(ctx context.Context, id string) (*plan.Per100g, error) {
	q := url.Values{}
	q.Set("api_key", f.apiKey)

	var food fdcFood
	if err := f.get(ctx, "/food/"+url.PathEscape(id)+"?"+q.Encode(), &food); err != nil {
		return nil, err
	}
	n := nutrientsToVector(food.FoodNutrients)
	if n == nil {
		return nil, fmt.Errorf("food %s has no usable nutrients", id)
	}
	return n, nil
}

func (f *FDC) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", f.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fdc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fdc api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode fdc response: %w", err)
	}
	return nil
}

// nutrientsToVector maps FDC nutrient rows onto the per-100g vector. FDC
// reports Foundation/SR values per 100 g already.
func nutrientsToVector(nutrients []fdcNutrient) *plan.Per100g {
	var n plan.Per100g
	found := false
	for _, nu := range nutrients {
		switch nu.NutrientNumber {
		case nutrientKcal:
			n.Kcal = nu.Value
			found = true
		case nutrientProtein:
			n.ProteinG = nu.Value
			found = true
		case nutrientCarbs:
			n.CarbsG = nu.Value
			found = true
		case nutrientFat:
			n.FatG = nu.Value
			found = true
		}
	}
	if !found {
		return nil
	}
	return &n
}
