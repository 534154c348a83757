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

// Branded is the remote secondary provider, a client for an
// OpenFoodFacts-style branded-food API. It is the least reliable source in
// the cascade, so every call runs under a circuit breaker: after 5
// consecutive failures the breaker opens for 30s and the provider fails
// fast until 2 probe calls succeed.
type Branded struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitBreaker
}

// NewBranded creates a branded-food client. The API key is optional for
// public endpoints.
func NewBranded(baseURL, apiKey string) *Branded {
	return &Branded{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: newCircuitBreaker("branded-food", 5, 2, 30*time.Second),
	}
}

func (b *Branded) Name() string                { return "branded-food" }
func (b *Branded) Provenance() plan.Provenance { return plan.ProvenanceRemoteSecondary }

type brandedProduct struct {
	Code        string             `json:"code"`
	ProductName string             `json:"product_name"`
	Nutriments  map[string]float64 `json:"nutriments"`
}

// Search queries the branded product index.
func (b *Branded) Search(ctx context.Context, name string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("search_terms", name)
	q.Set("json", "1")
	q.Set("page_size", "5")

	var resp struct {
		Products []brandedProduct `json:"products"`
	}
	if err := b.get(ctx, "/cgi/search.pl?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	var out []Candidate
	for _, p := range resp.Products {
		if p.ProductName == "" {
			continue
		}
		out = append(out, Candidate{
			FoodID:      p.Code,
			Description: p.ProductName,
			Nutrition:   nutrimentsToVector(p.Nutriments),
		})
	}
	return out, nil
}

// Food fetches one product by barcode.
func (b *Branded) Food(ctx context.Context, id string) (*plan.Per100g, error) {
	var resp struct {
		Product brandedProduct `json:"product"`
	}
	if err := b.get(ctx, "/api/v2/product/"+url.PathEscape(id)+".json", &resp); err != nil {
		return nil, err
	}
	n := nutrimentsToVector(resp.Product.Nutriments)
	if n == nil {
		return nil, fmt.Errorf("product %s has no usable nutriments", id)
	}
	return n, nil
}

func (b *Branded) get(ctx context.Context, path string, dst any) error {
	return b.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if b.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+b.apiKey)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("branded food request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("branded food api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode branded food response: %w", err)
		}
		return nil
	})
}

func nutrimentsToVector(nutriments map[string]float64) *plan.Per100g {
	if len(nutriments) == 0 {
		return nil
	}
	kcal, ok := nutriments["energy-kcal_100g"]
	if !ok {
		return nil
	}
	return &plan.Per100g{
		Kcal:     kcal,
		ProteinG: nutriments["proteins_100g"],
		CarbsG:   nutriments["carbohydrates_100g"],
		FatG:     nutriments["fat_100g"],
	}
}
