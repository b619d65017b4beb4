package handler

import (
	programapp "github.com/casehub/backend/internal/application/program"
	"github.com/gin-gonic/gin"
)

// ProgramHandler serves /programs
type ProgramHandler struct {
	BaseHandler
	programs *programapp.ProgramService
}

// NewProgramHandler creates a ProgramHandler
func NewProgramHandler(programs *programapp.ProgramService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// Create godoc
// @ID           createProgram
// @Summary      Create a program
// @Description  Create a program with its budget
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        request body programapp.CreateProgramRequest true "Program"
// @Success      201 {object} APIResponse[programapp.ProgramResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req programapp.CreateProgramRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.programs.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}

// GetByID godoc
// @ID           getProgramById
// @Summary      Get a program by ID
// @Description  Retrieve one program with budget, spend and open case count
// @Tags         programs
// @Produce      json
// @Param        id path string true "Program ID" format(uuid)
// @Success      200 {object} APIResponse[programapp.ProgramResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /programs/{id} [get]
func (h *ProgramHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "program")
	if !ok {
		return
	}
	p, err := h.programs.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// Update godoc
// @ID           updateProgram
// @Summary      Update a program
// @Description  Change program fields or complete it
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        id path string true "Program ID" format(uuid)
// @Param        request body programapp.UpdateProgramRequest true "Changes"
// @Success      200 {object} APIResponse[programapp.ProgramResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /programs/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "program")
	if !ok {
		return
	}
	var req programapp.UpdateProgramRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.programs.Update(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// RecordExpenditure godoc
// @ID           recordProgramExpenditure
// @Summary      Record an expenditure
// @Description  Add spending to a program
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        id path string true "Program ID" format(uuid)
// @Param        request body programapp.RecordExpenditureRequest true "Expenditure"
// @Success      200 {object} APIResponse[programapp.ProgramResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /programs/{id}/expenditures [post]
func (h *ProgramHandler) RecordExpenditure(c *gin.Context) {
	id, ok := h.pathID(c, "program")
	if !ok {
		return
	}
	var req programapp.RecordExpenditureRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.programs.RecordExpenditure(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}
