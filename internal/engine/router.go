package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the capability and rule endpoints. Reads require
// authentication; mutations additionally require the admin role.
func RegisterRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	trees := app.Group("/api/trees", authMW)
	trees.Get(":treeId/capabilities", h.Capabilities)

	fields := app.Group("/api/fields", authMW)

	deps := fields.Group(":fieldId/dependencies")
	deps.Get("", h.ListDependencies)
	deps.Get("read", h.ReadDependencies)
	deps.Post("evaluate", h.EvaluateDependencies)
	deps.Post("reorder", adminMW, h.ReorderDependencies)
	deps.Post("", adminMW, h.CreateDependency)
	deps.Put(":dependencyId", adminMW, h.UpdateDependency)
	deps.Delete(":dependencyId", adminMW, h.DeleteDependency)

	formulas := fields.Group(":fieldId/formulas")
	formulas.Get("", h.ListFormulas)
	formulas.Post("reorder", adminMW, h.ReorderFormulas)
	formulas.Post("", adminMW, h.CreateFormula)
	formulas.Put(":formulaId", adminMW, h.UpdateFormula)
	formulas.Delete(":formulaId/sequence/:index", adminMW, h.DeleteFormulaSequenceElement)
	formulas.Delete(":formulaId", adminMW, h.DeleteFormula)
}
