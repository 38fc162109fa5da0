package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(c *gin.Context)

	// (GET /api/v1/medications)
	GetApiV1Medications(c *gin.Context, params GetApiV1MedicationsParams)
	// (POST /api/v1/medications)
	PostApiV1Medications(c *gin.Context)
	// (GET /api/v1/medications/{id})
	GetApiV1MedicationsId(c *gin.Context, id string)
	// (PUT /api/v1/medications/{id}/schedule)
	PutApiV1MedicationsIdSchedule(c *gin.Context, id string)
	// (DELETE /api/v1/medications/{id})
	DeleteApiV1MedicationsId(c *gin.Context, id string)

	// (GET /api/v1/doses/today)
	GetApiV1DosesToday(c *gin.Context)
	// (GET /api/v1/doses/status)
	GetApiV1DosesStatus(c *gin.Context, params GetApiV1DosesStatusParams)
	// (POST /api/v1/doses/taken)
	PostApiV1DosesTaken(c *gin.Context)
	// (POST /api/v1/doses/skipped)
	PostApiV1DosesSkipped(c *gin.Context)
	// (DELETE /api/v1/doses)
	DeleteApiV1Doses(c *gin.Context)

	// (GET /api/v1/overview)
	GetApiV1Overview(c *gin.Context)
	// (GET /api/v1/history)
	GetApiV1History(c *gin.Context, params GetApiV1HistoryParams)

	// (POST /api/v1/reports)
	PostApiV1Reports(c *gin.Context)
	// (GET /api/v1/reports/{id})
	GetApiV1ReportsId(c *gin.Context, id string)

	// (GET /api/v1/assistant/greeting)
	GetApiV1AssistantGreeting(c *gin.Context)
	// (POST /api/v1/assistant/chat)
	PostApiV1AssistantChat(c *gin.Context)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler      ServerInterface
	ErrorHandler func(*gin.Context, error, int)
}

func (siw *ServerInterfaceWrapper) pathID(c *gin.Context) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter id: %w", err), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(c *gin.Context) {
	siw.Handler.GetHealth(c)
}

// GetApiV1Medications operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1Medications(c *gin.Context) {
	var params GetApiV1MedicationsParams

	err := runtime.BindQueryParameter("form", true, false, "include_deleted", c.Request.URL.Query(), &params.IncludeDeleted)
	if err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter include_deleted: %w", err), http.StatusBadRequest)
		return
	}

	siw.Handler.GetApiV1Medications(c, params)
}

// PostApiV1Medications operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Medications(c *gin.Context) {
	siw.Handler.PostApiV1Medications(c)
}

// GetApiV1MedicationsId operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1MedicationsId(c *gin.Context) {
	id, ok := siw.pathID(c)
	if !ok {
		return
	}
	siw.Handler.GetApiV1MedicationsId(c, id)
}

// PutApiV1MedicationsIdSchedule operation middleware
func (siw *ServerInterfaceWrapper) PutApiV1MedicationsIdSchedule(c *gin.Context) {
	id, ok := siw.pathID(c)
	if !ok {
		return
	}
	siw.Handler.PutApiV1MedicationsIdSchedule(c, id)
}

// DeleteApiV1MedicationsId operation middleware
func (siw *ServerInterfaceWrapper) DeleteApiV1MedicationsId(c *gin.Context) {
	id, ok := siw.pathID(c)
	if !ok {
		return
	}
	siw.Handler.DeleteApiV1MedicationsId(c, id)
}

// GetApiV1DosesToday operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1DosesToday(c *gin.Context) {
	siw.Handler.GetApiV1DosesToday(c)
}

// GetApiV1DosesStatus operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1DosesStatus(c *gin.Context) {
	var params GetApiV1DosesStatusParams
	query := c.Request.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "medication_id", query, &params.MedicationId); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter medication_id: %w", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "time", query, &params.Time); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter time: %w", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "date", query, &params.Date); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter date: %w", err), http.StatusBadRequest)
		return
	}

	siw.Handler.GetApiV1DosesStatus(c, params)
}

// PostApiV1DosesTaken operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1DosesTaken(c *gin.Context) {
	siw.Handler.PostApiV1DosesTaken(c)
}

// PostApiV1DosesSkipped operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1DosesSkipped(c *gin.Context) {
	siw.Handler.PostApiV1DosesSkipped(c)
}

// DeleteApiV1Doses operation middleware
func (siw *ServerInterfaceWrapper) DeleteApiV1Doses(c *gin.Context) {
	siw.Handler.DeleteApiV1Doses(c)
}

// GetApiV1Overview operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1Overview(c *gin.Context) {
	siw.Handler.GetApiV1Overview(c)
}

// GetApiV1History operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1History(c *gin.Context) {
	var params GetApiV1HistoryParams
	query := c.Request.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "start", query, &params.Start); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter start: %w", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "end", query, &params.End); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter end: %w", err), http.StatusBadRequest)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "medication_id", query, &params.MedicationId); err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter medication_id: %w", err), http.StatusBadRequest)
		return
	}

	siw.Handler.GetApiV1History(c, params)
}

// PostApiV1Reports operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Reports(c *gin.Context) {
	siw.Handler.PostApiV1Reports(c)
}

// GetApiV1ReportsId operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1ReportsId(c *gin.Context) {
	id, ok := siw.pathID(c)
	if !ok {
		return
	}
	siw.Handler.GetApiV1ReportsId(c, id)
}

// GetApiV1AssistantGreeting operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1AssistantGreeting(c *gin.Context) {
	siw.Handler.GetApiV1AssistantGreeting(c)
}

// PostApiV1AssistantChat operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1AssistantChat(c *gin.Context) {
	siw.Handler.PostApiV1AssistantChat(c)
}

// GinServerOptions provides options for the Gin server.
type GinServerOptions struct {
	BaseURL      string
	ErrorHandler func(*gin.Context, error, int)
}

// RegisterHandlers registers every API route on router.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, GinServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router gin.IRouter, si ServerInterface, options GinServerOptions) {
	errorHandler := options.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(c *gin.Context, err error, statusCode int) {
			details := err.Error()
			c.JSON(statusCode, ErrorResponse{
				Code:    CodeValidationError,
				Message: "Invalid request parameters",
				Details: &details,
			})
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:      si,
		ErrorHandler: errorHandler,
	}

	base := options.BaseURL
	router.GET(base+"/health", wrapper.GetHealth)
	router.GET(base+"/api/v1/medications", wrapper.GetApiV1Medications)
	router.POST(base+"/api/v1/medications", wrapper.PostApiV1Medications)
	router.GET(base+"/api/v1/medications/:id", wrapper.GetApiV1MedicationsId)
	router.PUT(base+"/api/v1/medications/:id/schedule", wrapper.PutApiV1MedicationsIdSchedule)
	router.DELETE(base+"/api/v1/medications/:id", wrapper.DeleteApiV1MedicationsId)
	router.GET(base+"/api/v1/doses/today", wrapper.GetApiV1DosesToday)
	router.GET(base+"/api/v1/doses/status", wrapper.GetApiV1DosesStatus)
	router.POST(base+"/api/v1/doses/taken", wrapper.PostApiV1DosesTaken)
	router.POST(base+"/api/v1/doses/skipped", wrapper.PostApiV1DosesSkipped)
	router.DELETE(base+"/api/v1/doses", wrapper.DeleteApiV1Doses)
	router.GET(base+"/api/v1/overview", wrapper.GetApiV1Overview)
	router.GET(base+"/api/v1/history", wrapper.GetApiV1History)
	router.POST(base+"/api/v1/reports", wrapper.PostApiV1Reports)
	router.GET(base+"/api/v1/reports/:id", wrapper.GetApiV1ReportsId)
	router.GET(base+"/api/v1/assistant/greeting", wrapper.GetApiV1AssistantGreeting)
	router.POST(base+"/api/v1/assistant/chat", wrapper.PostApiV1AssistantChat)
}
