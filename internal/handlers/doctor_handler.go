package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/middleware"
	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/services"
)

// Fields a doctor may change on their own record.
var doctorEditable = map[string]bool{
	"experience": true, "address": true, "city": true, "price": true,
	"phone": true, "description": true, "photo": true, "workingHours": true,
	"latitude": true, "longitude": true,
}

// ListDoctors searches the directory. ?specialty= and ?q= filter, ?sort=
// is rating, distance or price, and ?lat=&lng= locate the caller.
func (h *Handler) ListDoctors(c *gin.Context) {
	opts := services.SearchOptions{
		Specialty: c.Query("specialty"),
		Query:     c.Query("q"),
		Sort:      c.Query("sort"),
	}
	if lat, lng := c.Query("lat"), c.Query("lng"); lat != "" && lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			badRequest(c, "lat and lng must be numbers")
			return
		}
		opts.From = &services.Location{Latitude: la, Longitude: lo}
	}

	results, err := h.Svc.FindDoctors(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, results)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	d, err := h.Svc.GetDoctorByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// currentDoctor resolves the doctor record of the caller, writing the error
// response when there is none.
func (h *Handler) currentDoctor(c *gin.Context) (*models.Doctor, bool) {
	d, err := h.Svc.GetDoctorByEmail(c.Request.Context(), middleware.Session(c).Email)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return d, true
}

func (h *Handler) GetDoctorProfile(c *gin.Context) {
	d, found := h.currentDoctor(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, d)
}

func (h *Handler) UpdateDoctorProfile(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	d, found := h.currentDoctor(c)
	if !found {
		return
	}

	updates := make(map[string]any, len(body))
	for k, v := range body {
		if doctorEditable[k] {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		badRequest(c, "No editable fields in request")
		return
	}
	if err := h.Svc.UpdateDoctor(c.Request.Context(), d.ID, updates); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

// GetDoctorAppointments lists the caller's schedule, oldest first, with
// ?status= and ?q= filters.
func (h *Handler) GetDoctorAppointments(c *gin.Context) {
	d, found := h.currentDoctor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	appts, err := h.Svc.DoctorAppointments(ctx, d.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	views, err := h.Svc.DoctorViews(ctx, appts)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, services.FilterAppointments(views, c.Query("status"), c.Query("q")))
}

func (h *Handler) GetDoctorPatients(c *gin.Context) {
	d, found := h.currentDoctor(c)
	if !found {
		return
	}
	patients, err := h.Svc.DoctorPatients(c.Request.Context(), d.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, patients)
}

func (h *Handler) GetDoctorStats(c *gin.Context) {
	d, found := h.currentDoctor(c)
	if !found {
		return
	}
	dash, err := h.Svc.DoctorDashboard(c.Request.Context(), d.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, dash)
}
