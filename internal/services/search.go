package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// Sort orders accepted by SearchDoctors.
const (
	SortRating   = "rating"
	SortDistance = "distance"
	SortPrice    = "price"
)

const earthRadiusKm = 6371

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type SearchOptions struct {
	Specialty string
	Query     string
	Sort      string
	From      *Location
}

// DoctorResult is a doctor with its distance from the searcher in km,
// rounded to one decimal, when both positions are known.
type DoctorResult struct {
	models.Doctor
	Distance *float64 `json:"distance,omitempty"`
}

// Distance returns the great-circle distance between a and b in km.
func Distance(a, b Location) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Latitude - a.Latitude)
	dLon := rad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Latitude))*math.Cos(rad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ListDoctors reads the doctors once, optionally restricted to a specialty.
func (s *Service) ListDoctors(ctx context.Context, specialty string) ([]models.Doctor, error) {
	if specialty != "" {
		es, err := s.db.Query(ctx, doctorsPath, store.Query{OrderBy: "specialty", EqualTo: specialty})
		if err != nil {
			return nil, err
		}
		return decodeEntries[models.Doctor](s, doctorsPath, es), nil
	}
	v, err := s.db.Read(ctx, doctorsPath)
	if err != nil {
		return nil, err
	}
	return decodeEntries[models.Doctor](s, doctorsPath, store.Entries(v)), nil
}

func (s *Service) FindDoctors(ctx context.Context, opts SearchOptions) ([]DoctorResult, error) {
	doctors, err := s.ListDoctors(ctx, opts.Specialty)
	if err != nil {
		return nil, err
	}
	return SearchDoctors(doctors, opts), nil
}

// SearchDoctors filters doctors by specialty and by q in the name or city,
// then orders them. Rating sorts best first, distance nearest first with
// unknown positions last, price cheapest first. Any other order, or a
// distance sort without a location, keeps the input order.
func SearchDoctors(doctors []models.Doctor, opts SearchOptions) []DoctorResult {
	q := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]DoctorResult, 0, len(doctors))
	for _, d := range doctors {
		if opts.Specialty != "" && d.Specialty != opts.Specialty {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.City), q) {
			continue
		}
		r := DoctorResult{Doctor: d}
		if opts.From != nil && d.Latitude != nil && d.Longitude != nil {
			km := math.Round(Distance(*opts.From, Location{*d.Latitude, *d.Longitude})*10) / 10
			r.Distance = &km
		}
		out = append(out, r)
	}

	switch opts.Sort {
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case SortDistance:
		if opts.From == nil {
			break
		}
		dist := func(r DoctorResult) float64 {
			if r.Distance == nil {
				return math.Inf(1)
			}
			return *r.Distance
		}
		sort.SliceStable(out, func(i, j int) bool { return dist(out[i]) < dist(out[j]) })
	case SortPrice:
		sort.SliceStable(out, func(i, j int) bool { return priceValue(out[i].Price) < priceValue(out[j].Price) })
	}
	return out
}

var nonPrice = regexp.MustCompile(`[^0-9.]`)

// priceValue extracts the amount of a display price such as "300 DH".
// Unreadable prices count as 0.
func priceValue(p string) float64 {
	digits := nonPrice.ReplaceAllString(p, "")
	if i := strings.Index(digits, "."); i >= 0 {
		if j := strings.Index(digits[i+1:], "."); j >= 0 {
			digits = digits[:i+1+j]
		}
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return v
}
