package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"newhome-tracker/models"
	"newhome-tracker/storage"
)

// Plans returns the publishable catalog. Listings missing a plan name, price,
// company or community are left out.
func (s *Server) Plans(ctx context.Context) ([]models.PlanView, error) {
	listings, err := s.store.ListAllListings(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := storage.RecentlyChangedIDs(ctx, s.store, s.clock.Now().Add(-s.cfg.ChangeWindow))
	if err != nil {
		return nil, err
	}

	views := make([]models.PlanView, 0, len(listings))
	for _, l := range listings {
		if l.PlanName == "" || l.Price == nil || l.Company == "" || l.Community == "" {
			continue
		}
		views = append(views, models.PlanView{
			PlanName:             l.PlanName,
			Price:                *l.Price,
			Sqft:                 l.Sqft,
			Stories:              optional(l.Stories),
			PricePerSqft:         l.PricePerSqft,
			LastUpdated:          l.LastUpdated,
			Company:              l.Company,
			Community:            l.Community,
			Type:                 l.Type,
			Address:              optional(l.Address),
			PriceChangedRecently: recent[l.ID],
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Community != b.Community {
			return a.Community < b.Community
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.PlanName != b.PlanName {
			return a.PlanName < b.PlanName
		}
		return a.Type < b.Type
	})
	return views, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx); ok {
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, payload)
			return
		}
	}

	views, err := s.Plans(ctx)
	if err != nil {
		s.logger.Error("[api] Loading plans: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load plans")
		return
	}
	payload, err := json.Marshal(views)
	if err != nil {
		s.logger.Error("[api] Encoding plans: %v", err)
		writeError(w, http.StatusInternalServerError, "could not encode plans")
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, payload); err != nil {
			s.logger.Warn("[api] Plans cache write failed: %v", err)
		}
		w.Header().Set("X-Cache", "MISS")
	}
	writeRaw(w, payload)
}

func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
