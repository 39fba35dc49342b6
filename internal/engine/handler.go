package engine

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"fieldengine/internal/store"
)

const capabilityVersion = "1.0"

// Handler exposes the capability and rule endpoints over Fiber.
type Handler struct {
	store        *store.Store
	resolver     *Resolver
	dependencies *DependencyStore
	formulas     *FormulaStore
}

func NewHandler(s *store.Store) *Handler {
	return &Handler{
		store:        s,
		resolver:     NewResolver(NewSQLResourceLoader(s)),
		dependencies: NewDependencyStore(s),
		formulas:     NewFormulaStore(s),
	}
}

// Capabilities handles GET /api/trees/:treeId/capabilities.
// ?raw=true attaches the winning resource body, ?deps=true the extracted
// dependency IDs.
func (h *Handler) Capabilities(c *fiber.Ctx) error {
	treeID := c.Params("treeId")
	if treeID == "" {
		return respondError(c, MissingParamError("treeId"))
	}

	opts := ResolveOptions{
		IncludeRaw:          c.QueryBool("raw"),
		ExtractDependencies: c.QueryBool("deps"),
	}

	capabilities, err := h.resolver.ResolveCapabilities(c.Context(), treeID, opts)
	if err != nil {
		return respondError(c, StorageError("failed to resolve capabilities", err))
	}

	return c.JSON(fiber.Map{
		"treeId":       treeID,
		"count":        len(capabilities),
		"capabilities": capabilities,
		"meta": fiber.Map{
			"extractedAt": time.Now().UTC().Format(time.RFC3339),
			"raw":         opts.IncludeRaw,
			"deps":        opts.ExtractDependencies,
			"version":     capabilityVersion,
		},
	})
}

// ListDependencies handles GET /api/fields/:fieldId/dependencies.
func (h *Handler) ListDependencies(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	deps, derr := h.dependencies.List(c.Context(), fieldID)
	if derr != nil {
		return respondError(c, StorageError("failed to list dependencies", derr))
	}
	return c.JSON(deps)
}

// ReadDependencies handles GET /api/fields/:fieldId/dependencies/read,
// the non-admin read surface. The wrapped shape is kept for clients of
// the legacy read endpoint.
func (h *Handler) ReadDependencies(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	deps, derr := h.dependencies.List(c.Context(), fieldID)
	if derr != nil {
		return respondError(c, StorageError("failed to list dependencies", derr))
	}
	return c.JSON(fiber.Map{"success": true, "data": deps})
}

// CreateDependency handles POST /api/fields/:fieldId/dependencies and
// responds with the field's full recomputed rule list.
func (h *Handler) CreateDependency(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var in CreateDependencyInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	deps, derr := h.dependencies.Create(c.Context(), fieldID, in)
	if derr != nil {
		return respondStoreError(c, "failed to create dependency", derr)
	}
	return c.Status(201).JSON(deps)
}

// UpdateDependency handles PUT /api/fields/:fieldId/dependencies/:dependencyId.
func (h *Handler) UpdateDependency(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	depID := c.Params("dependencyId")

	var in UpdateDependencyInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	deps, derr := h.dependencies.Update(c.Context(), fieldID, depID, in)
	if derr != nil {
		return respondStoreError(c, "failed to update dependency", derr)
	}
	return c.JSON(deps)
}

// DeleteDependency handles DELETE /api/fields/:fieldId/dependencies/:dependencyId.
func (h *Handler) DeleteDependency(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	depID := c.Params("dependencyId")

	if derr := h.dependencies.Delete(c.Context(), fieldID, depID); derr != nil {
		return respondStoreError(c, "failed to delete dependency", derr)
	}
	return c.JSON(fiber.Map{"id": depID, "success": true})
}

// ReorderDependencies handles POST /api/fields/:fieldId/dependencies/reorder.
func (h *Handler) ReorderDependencies(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var body struct {
		Dependencies []OrderUpdate `json:"dependencies"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if len(body.Dependencies) == 0 {
		return respondError(c, ValidationError("dependencies must be a non-empty array"))
	}

	if derr := h.dependencies.Reorder(c.Context(), fieldID, body.Dependencies); derr != nil {
		return respondStoreError(c, "failed to reorder dependencies", derr)
	}
	return c.JSON(fiber.Map{"success": true})
}

// EvaluateDependencies handles POST /api/fields/:fieldId/dependencies/evaluate.
// The body carries the submitted form values keyed by field ID.
func (h *Handler) EvaluateDependencies(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var body struct {
		Values map[string]any `json:"values"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	deps, derr := h.dependencies.List(c.Context(), fieldID)
	if derr != nil {
		return respondError(c, StorageError("failed to list dependencies", derr))
	}

	effects := EvaluateDependencies(deps, body.Values)
	return c.JSON(fiber.Map{
		"fieldId": fieldID,
		"effects": effects,
	})
}

// ListFormulas handles GET /api/fields/:fieldId/formulas.
func (h *Handler) ListFormulas(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	formulas, ferr := h.formulas.List(c.Context(), fieldID)
	if ferr != nil {
		return respondError(c, StorageError("failed to list formulas", ferr))
	}
	return c.JSON(formulas)
}

// CreateFormula handles POST /api/fields/:fieldId/formulas.
func (h *Handler) CreateFormula(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var in CreateFormulaInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if in.Name == "" {
		return respondError(c, ValidationError("name is required"))
	}

	formulas, ferr := h.formulas.Create(c.Context(), fieldID, in)
	if ferr != nil {
		return respondStoreError(c, "failed to create formula", ferr)
	}
	return c.Status(201).JSON(formulas)
}

// UpdateFormula handles PUT /api/fields/:fieldId/formulas/:formulaId.
func (h *Handler) UpdateFormula(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	formulaID := c.Params("formulaId")

	var in UpdateFormulaInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	formulas, ferr := h.formulas.Update(c.Context(), fieldID, formulaID, in)
	if ferr != nil {
		return respondStoreError(c, "failed to update formula", ferr)
	}
	return c.JSON(formulas)
}

// DeleteFormula handles DELETE /api/fields/:fieldId/formulas/:formulaId
// and responds with the remaining formula list.
func (h *Handler) DeleteFormula(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	formulaID := c.Params("formulaId")

	formulas, ferr := h.formulas.Delete(c.Context(), fieldID, formulaID)
	if ferr != nil {
		return respondStoreError(c, "failed to delete formula", ferr)
	}
	return c.JSON(formulas)
}

// DeleteFormulaSequenceElement handles
// DELETE /api/fields/:fieldId/formulas/:formulaId/sequence/:index.
func (h *Handler) DeleteFormulaSequenceElement(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}
	formulaID := c.Params("formulaId")

	index, perr := strconv.Atoi(c.Params("index"))
	if perr != nil {
		return respondError(c, ValidationError("invalid sequence index"))
	}

	formulas, ferr := h.formulas.DeleteSequenceElement(c.Context(), fieldID, formulaID, index)
	if ferr != nil {
		return respondStoreError(c, "failed to delete sequence element", ferr)
	}
	return c.JSON(formulas)
}

// ReorderFormulas handles POST /api/fields/:fieldId/formulas/reorder.
func (h *Handler) ReorderFormulas(c *fiber.Ctx) error {
	fieldID, err := fieldParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var body struct {
		Formulas []OrderUpdate `json:"formulas"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if len(body.Formulas) == 0 {
		return respondError(c, ValidationError("formulas must be a non-empty array"))
	}

	if ferr := h.formulas.Reorder(c.Context(), fieldID, body.Formulas); ferr != nil {
		return respondStoreError(c, "failed to reorder formulas", ferr)
	}
	return c.JSON(fiber.Map{"success": true})
}

func fieldParam(c *fiber.Ctx) (string, *AppError) {
	fieldID := c.Params("fieldId")
	if fieldID == "" {
		return "", MissingParamError("fieldId")
	}
	return fieldID, nil
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// respondStoreError surfaces AppErrors from the stores as-is and wraps
// anything else as a storage failure.
func respondStoreError(c *fiber.Ctx, msg string, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	return respondError(c, StorageError(msg, err))
}
