package handlers

import (
	"net/http"

	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Heating characteristics
// @Tags         characteristics
// @Produce      json
// @Success      200  {object}  models.Characteristics
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/characteristics [get]
// @Security     BearerAuth
func (h *Handler) getCharacteristics(c *gin.Context) {
	chars, err := h.services.GetCharacteristics(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to load characteristics", "characteristics_get_failed")
		return
	}
	c.JSON(http.StatusOK, chars)
}

// @Summary      Regenerate characteristics
// @Description  Fits the thermal model on history between from and to (both optional, same formats as /logs).
// @Tags         characteristics
// @Produce      json
// @Param        from  query     string  false  "Start of history"  example(2026-02-01)
// @Param        to    query     string  false  "End of history"    example(2026-03-01)
// @Success      200   {object}  models.Characteristics
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/characteristics/generate [post]
// @Security     BearerAuth
func (h *Handler) generateCharacteristics(c *gin.Context) {
	from, to, ok := h.queryRange(c)
	if !ok {
		return
	}
	chars, err := h.services.GenerateCharacteristics(c.Request.Context(), service.GenerateParams{From: from, To: to})
	if err != nil {
		h.respondError(c, err, "failed to generate characteristics", "characteristics_generate_failed", "from", from, "to", to)
		return
	}
	c.JSON(http.StatusOK, chars)
}
