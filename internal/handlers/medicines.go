package handlers

import (
	"strings"

	"medichat-server/internal/medicine"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// MedicineHandler serves the static medicine reference table.
type MedicineHandler struct {
	Medicines *medicine.KnowledgeBase
}

// NewMedicineHandler creates a new MedicineHandler.
func NewMedicineHandler(kb *medicine.KnowledgeBase) *MedicineHandler {
	return &MedicineHandler{Medicines: kb}
}

// MedicineSummary is the short form of a medicine used in listings.
type MedicineSummary struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Uses     []string `json:"uses"`
	Dosage   string   `json:"dosage"`
}

func summarize(meds []medicine.Medicine) []MedicineSummary {
	out := make([]MedicineSummary, len(meds))
	for i, m := range meds {
		out[i] = MedicineSummary{Name: m.Name, Category: m.Category, Uses: m.Uses, Dosage: m.Dosage}
	}
	return out
}

// ListMedicines returns every medicine in table order.
func (h *MedicineHandler) ListMedicines(c *gin.Context) {
	meds := summarize(h.Medicines.All())
	utils.JSON(c, gin.H{"medicines": meds, "total": len(meds)})
}

// SearchMedicines finds medicines with a use matching ?symptom=.
func (h *MedicineHandler) SearchMedicines(c *gin.Context) {
	query := strings.ToLower(strings.TrimSpace(c.Query("symptom")))
	if query == "" {
		utils.BadRequest(c, "symptom parameter required")
		return
	}

	results := summarize(h.Medicines.SearchByUse(query))
	utils.JSON(c, gin.H{"results": results, "count": len(results), "query": query})
}

// GetMedicine returns the full record for one medicine.
func (h *MedicineHandler) GetMedicine(c *gin.Context) {
	med, ok := h.Medicines.Lookup(c.Param("name"))
	if !ok {
		utils.NotFound(c, "Medicine not found")
		return
	}
	utils.JSON(c, med)
}
