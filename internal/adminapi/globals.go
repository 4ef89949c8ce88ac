package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/estmator/estmator/pkg/common"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type globalsPayload struct {
	StreetLoad     float64 `json:"street_load" validate:"gte=0,lte=10"`
	MidriseElevStd float64 `json:"midrise_elev_std" validate:"gte=0,lte=10"`
	MidriseElvFrt  float64 `json:"midrise_elv_frt" validate:"gte=0,lte=10"`
	Highrise       float64 `json:"highrise" validate:"gte=0,lte=10"`
	Stairs         float64 `json:"stairs" validate:"gte=0,lte=10"`
	LngPsh         float64 `json:"lng_psh" validate:"gte=0,lte=10"`
	HourlyRate     float64 `json:"hourly_rate" validate:"gte=0"`
	TravelRate     float64 `json:"travel_rate" validate:"gte=0"`
	OvertimeFactor float64 `json:"overtime_factor" validate:"gte=1"`
}

func registerGlobalsRoutes() {
	webserver.ApiGET("/pricing/globals", getGlobals)
	webserver.ApiPUT("/pricing/globals", updateGlobals)
}

func getGlobals(c echo.Context) error {
	var gv domain.GlobalVars
	err := GetDB(c).Where("active = ?", true).Order("created_at DESC").First(&gv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "GLOBALS_NOT_FOUND", "No active global modifiers", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query global modifiers", err.Error())
	}
	return ok(c, gv)
}

// updateGlobals retires the active rate set and stores the payload as the new
// active one. Existing quotes keep pricing with the set they reference.
func updateGlobals(c echo.Context) error {
	var payload globalsPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse global modifiers", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	gv := domain.GlobalVars{
		ID:             common.UUIDint64(),
		StreetLoad:     payload.StreetLoad,
		MidriseElevStd: payload.MidriseElevStd,
		MidriseElvFrt:  payload.MidriseElvFrt,
		Highrise:       payload.Highrise,
		Stairs:         payload.Stairs,
		LngPsh:         payload.LngPsh,
		HourlyRate:     payload.HourlyRate,
		TravelRate:     payload.TravelRate,
		OvertimeFactor: payload.OvertimeFactor,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.GlobalVars{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(&gv).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update global modifiers", err.Error())
	}

	audit(c, "globals.updated", "global modifiers updated")
	return ok(c, gv)
}
