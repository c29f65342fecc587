package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/services"
)

type DataHandler struct {
	data services.DataStoreService
}

func NewDataHandler(data services.DataStoreService) *DataHandler {
	return &DataHandler{data: data}
}

// GET /api/apps/:id/data?page=&per_page=&sort_column=&sort_direction=&filter=&search=&table=
func (h *DataHandler) List(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	params := repos.DataListParams{
		Table:         strings.TrimSpace(c.Query("table")),
		ValueType:     strings.TrimSpace(c.Query("filter")),
		Search:        strings.TrimSpace(c.Query("search")),
		SortColumn:    strings.TrimSpace(c.Query("sort_column")),
		SortDirection: strings.TrimSpace(c.Query("sort_direction")),
		Page:          queryInt(c, "page", 1),
		PerPage:       queryInt(c, "per_page", repos.DataDefaultPerPage),
	}
	page, err := h.data.List(dbcOf(c), appID, params)
	if err != nil {
		response.RespondServiceError(c, "list_data_failed", err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/apps/:id/data/:item_id
func (h *DataHandler) Get(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id", "invalid_item_id")
	if !ok {
		return
	}
	item, err := h.data.Get(dbcOf(c), appID, itemID)
	if err != nil {
		response.RespondServiceError(c, "get_data_failed", err)
		return
	}
	response.RespondOK(c, item)
}

// POST /api/apps/:id/data
// body: { "table_name": "...", "key": "...", "value": <json>, "value_type": "...", "description": "..." }
func (h *DataHandler) Create(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	var in services.DataInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.data.Create(dbcOf(c), appID, in)
	if err != nil {
		response.RespondServiceError(c, "create_data_failed", err)
		return
	}
	response.RespondCreated(c, item)
}

// PUT and PATCH /api/apps/:id/data/:item_id
// Both are partial: omitted fields keep their value.
func (h *DataHandler) Update(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id", "invalid_item_id")
	if !ok {
		return
	}
	var in services.DataInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.data.Update(dbcOf(c), appID, itemID, in)
	if err != nil {
		response.RespondServiceError(c, "update_data_failed", err)
		return
	}
	response.RespondOK(c, item)
}

// DELETE /api/apps/:id/data/:item_id
func (h *DataHandler) Delete(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id", "invalid_item_id")
	if !ok {
		return
	}
	if err := h.data.Delete(dbcOf(c), appID, itemID); err != nil {
		response.RespondServiceError(c, "delete_data_failed", err)
		return
	}
	response.RespondNoContent(c)
}

// POST /api/apps/:id/pages/:slug/queries/:key/run
func (h *DataHandler) RunQuery(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	result, err := h.data.RunQuery(dbcOf(c), appID, c.Param("slug"), c.Param("key"))
	if err != nil {
		response.RespondServiceError(c, "run_query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"key": c.Param("key"), "result": result})
}

// GET /api/apps/:id/pages/:slug/context
func (h *DataHandler) PageContext(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	ctx, err := h.data.PageContext(dbcOf(c), appID, c.Param("slug"))
	if err != nil {
		response.RespondServiceError(c, "page_context_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"context": ctx})
}

func queryInt(c *gin.Context, name string, def int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
