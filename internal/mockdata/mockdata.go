// Package mockdata generates deterministic demo data for the directory:
// businesses plus their impressions, transactions and reviews. The same
// Seed and Now always produce the same dataset, including IDs.
package mockdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"guida/internal/core"
	"guida/internal/entities"
)

var idNamespace = uuid.MustParse("7a1f3c52-9a4e-4d7b-8f15-2f0c6b1d9e01")

var (
	businessNames = []string{
		"Trattoria Da Enzo", "Hotel Roma", "Gelateria Alberto", "Caffe Greco",
		"Bike Tours Firenze", "Osteria del Ponte", "Museo Diffuso", "Pensione Miramare",
		"Forno Antico", "Vespa Rent",
	}
	categories = []string{"restaurant", "hotel", "cafe", "tour", "museum", "shop"}
	cities     = []string{"Rome", "Florence", "Venice", "Naples", "Bologna"}
	devices    = []string{"mobile", "desktop", "tablet"}
	plans      = []string{"basic", "premium", "featured"}
	planPrices = map[string]decimal.Decimal{
		"basic":    decimal.RequireFromString("19.90"),
		"premium":  decimal.RequireFromString("49.90"),
		"featured": decimal.RequireFromString("99.00"),
	}
	cardBrands = []string{"visa", "mastercard", "amex", "elo"}
	authors    = []string{"Giulia", "Marco", "Ana", "Pedro", "Sofia", "Luca"}
)

// weighted action mix: views dominate, calls are rare
var actionWeights = []struct {
	action core.ImpressionAction
	weight int
}{
	{core.ActionView, 70},
	{core.ActionClick, 18},
	{core.ActionWebsite, 8},
	{core.ActionCall, 4},
}

type Generator struct {
	Seed uint64
	// Now anchors generated timestamps; nothing is generated after it.
	Now time.Time
}

// Dataset is everything Generate produced, ready to be stored.
type Dataset struct {
	Businesses   []core.Business
	Impressions  []core.Impression
	Transactions []core.Transaction
	Reviews      []core.Review
}

func (g Generator) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return rand.New(rand.NewPCG(g.Seed, h.Sum64()))
}

func (g Generator) id(parts ...any) string {
	return uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%d%v", g.Seed, parts)).String()
}

// Generate produces n businesses with days of activity each.
func (g Generator) Generate(n, days int) Dataset {
	var ds Dataset
	ds.Businesses = g.Businesses(n)
	for _, b := range ds.Businesses {
		ds.Impressions = append(ds.Impressions, g.Impressions(b.ID, days)...)
		ds.Transactions = append(ds.Transactions, g.Transactions(b.ID, days)...)
		ds.Reviews = append(ds.Reviews, g.Reviews(b.ID, days)...)
	}
	return ds
}

func (g Generator) Businesses(n int) []core.Business {
	r := g.rng("businesses")
	out := make([]core.Business, n)
	for i := range out {
		name := businessNames[i%len(businessNames)]
		if i >= len(businessNames) {
			name = fmt.Sprintf("%s %d", name, i/len(businessNames)+1)
		}
		status := core.StatusActive
		if r.IntN(10) == 0 {
			status = core.StatusPending
		}
		out[i] = core.Business{
			ID:          g.id("business", i),
			Name:        name,
			Category:    pick(r, categories),
			City:        pick(r, cities),
			Rating:      float64(30+r.IntN(21)) / 10,
			Featured:    r.IntN(4) == 0,
			Status:      status,
			CreatedDate: g.Now.AddDate(0, 0, -(90 + r.IntN(365))).Truncate(time.Second),
		}
	}
	return out
}

// Impressions produces 5 to 40 interactions per day for the last days
// calendar days, today included.
func (g Generator) Impressions(businessID string, days int) []core.Impression {
	r := g.rng("impressions", businessID)
	var out []core.Impression
	for d := days - 1; d >= 0; d-- {
		for range 5 + r.IntN(36) {
			out = append(out, core.Impression{
				ID:          g.id("impression", businessID, len(out)),
				BusinessID:  businessID,
				Action:      pickAction(r),
				Device:      pick(r, devices),
				Location:    pick(r, cities),
				CreatedDate: g.timeOnDay(r, d),
			})
		}
	}
	return out
}

// Transactions produces roughly one subscription payment a week.
func (g Generator) Transactions(businessID string, days int) []core.Transaction {
	r := g.rng("transactions", businessID)
	var out []core.Transaction
	for d := days - 1; d >= 0; d-- {
		if r.IntN(7) != 0 {
			continue
		}
		plan := pick(r, plans)
		status := core.TransactionPaid
		switch n := r.IntN(20); {
		case n == 0:
			status = core.TransactionFailed
		case n == 1:
			status = core.TransactionRefunded
		case n < 4:
			status = core.TransactionPending
		}
		created := g.timeOnDay(r, d)
		out = append(out, core.Transaction{
			ID:          g.id("transaction", businessID, len(out)),
			BusinessID:  businessID,
			Amount:      planPrices[plan],
			Status:      status,
			Plan:        plan,
			Payment:     g.payment(r, created),
			CreatedDate: created,
		})
	}
	return out
}

// Reviews produces at most one review a day, skewed towards good ratings.
func (g Generator) Reviews(businessID string, days int) []core.Review {
	r := g.rng("reviews", businessID)
	var out []core.Review
	for d := days - 1; d >= 0; d-- {
		if r.IntN(3) != 0 {
			continue
		}
		rating := 5 - r.IntN(3)
		if r.IntN(10) == 0 {
			rating = 1 + r.IntN(2)
		}
		out = append(out, core.Review{
			ID:          g.id("review", businessID, len(out)),
			BusinessID:  businessID,
			Rating:      rating,
			Author:      pick(r, authors),
			CreatedDate: g.timeOnDay(r, d),
		})
	}
	return out
}

func (g Generator) payment(r *rand.Rand, created time.Time) core.PaymentDetails {
	switch r.IntN(3) {
	case 0:
		return core.CardPayment{
			Brand:        pick(r, cardBrands),
			Last4:        fmt.Sprintf("%04d", r.IntN(10000)),
			Installments: 1 + r.IntN(3),
		}
	case 1:
		return core.PixPayment{
			Key:           fmt.Sprintf("pix-%06d@guida.example", r.IntN(1_000_000)),
			TransactionID: fmt.Sprintf("E%012d", r.Int64N(1_000_000_000_000)),
		}
	default:
		return core.BoletoPayment{
			Barcode: fmt.Sprintf("%047d", r.Int64N(1_000_000_000_000_000)),
			DueDate: created.AddDate(0, 0, 3).Truncate(24 * time.Hour),
		}
	}
}

// timeOnDay returns a random instant on the calendar day daysAgo days
// before Now, never later than Now.
func (g Generator) timeOnDay(r *rand.Rand, daysAgo int) time.Time {
	y, m, d := g.Now.Date()
	start := time.Date(y, m, d-daysAgo, 0, 0, 0, 0, g.Now.Location())
	end := time.Date(y, m, d-daysAgo+1, 0, 0, 0, 0, g.Now.Location())
	if end.After(g.Now) {
		end = g.Now
	}
	span := end.Sub(start) / time.Second
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(r.Int64N(int64(span))) * time.Second)
}

// Store writes ds through the typed collections of store.
func Store(ctx context.Context, store entities.Store, ds Dataset) error {
	if err := createAll(ctx, entities.BusinessCollection(store), ds.Businesses); err != nil {
		return err
	}
	if err := createAll(ctx, entities.ImpressionCollection(store), ds.Impressions); err != nil {
		return err
	}
	if err := createAll(ctx, entities.TransactionCollection(store), ds.Transactions); err != nil {
		return err
	}
	return createAll(ctx, entities.ReviewCollection(store), ds.Reviews)
}

func createAll[T any](ctx context.Context, c *entities.Collection[T], items []T) error {
	for i, it := range items {
		if _, err := c.Create(ctx, it); err != nil {
			return fmt.Errorf("seed %s #%d: %w", c.Name(), i, err)
		}
	}
	return nil
}

func pick[T any](r *rand.Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

func pickAction(r *rand.Rand) core.ImpressionAction {
	n := r.IntN(100)
	for _, aw := range actionWeights {
		if n < aw.weight {
			return aw.action
		}
		n -= aw.weight
	}
	return core.ActionView
}
