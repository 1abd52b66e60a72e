package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// handleStores handles /api/stores (GET list, POST create).
func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStoreList(w, r)
	case http.MethodPost:
		s.handleStoreCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleStoreList(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleField) {
		return
	}

	stores, err := s.app.Storage.StoreDirectory().List(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if stores == nil {
		stores = []*models.Store{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"stores": stores})
}

func (s *Server) handleStoreCreate(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	var store models.Store
	if !DecodeJSON(w, r, &store) {
		return
	}
	store.CustomerCode = strings.TrimSpace(store.CustomerCode)
	if store.CustomerCode == "" {
		WriteError(w, http.StatusBadRequest, "customer_code is required")
		return
	}

	created, err := s.app.Storage.StoreDirectory().Upsert(r.Context(), &store)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, &store)
}

func (s *Server) handleStoreGet(w http.ResponseWriter, r *http.Request, code string) {
	if !requireRole(w, r, models.RoleField) {
		return
	}

	store, err := s.app.Storage.StoreDirectory().Get(r.Context(), code)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if store == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "not found", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, store)
}

func (s *Server) handleStoreDelete(w http.ResponseWriter, r *http.Request, code string) {
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	if err := s.app.Storage.StoreDirectory().Delete(r.Context(), code); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"customer_code": code, "status": "deleted"})
}

// handleStoreImport handles POST /api/stores/import — bulk CSV upsert of
// the store directory. The body is either raw CSV or a multipart upload
// with a "file" part. Counts are exact: prior existence is checked per
// row by the directory upsert.
func (s *Server) handleStoreImport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	reader, err := importBodyReader(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.importStoresCSV(r, reader)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, _ := json.Marshal(result)
	if auditErr := s.app.Storage.AuditStore().Append(r.Context(), &models.AuditRecord{
		Action:   models.AuditActionStoreImported,
		EntityID: "store_directory",
		Actor:    common.ResolveActorID(r.Context()),
		After:    detail,
	}); auditErr != nil {
		s.logger.Warn().Err(auditErr).Msg("Failed to append store import audit record")
	}

	s.logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Store import complete")

	WriteJSON(w, http.StatusOK, result)
}

// importBodyReader resolves the CSV source from the request.
func importBodyReader(r *http.Request) (io.Reader, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("multipart import requires a \"file\" part")
		}
		return f, nil
	}
	return http.MaxBytesReader(nil, r.Body, 32<<20), nil
}

// storeImportColumns is the required CSV header order.
var storeImportColumns = []string{"customer_code", "name", "region", "address", "latitude", "longitude", "brand_names"}

// importStoresCSV upserts one store per CSV row. Rows with no customer
// code are skipped and reported; a malformed header aborts the import.
func (s *Server) importStoresCSV(r *http.Request, src io.Reader) (*models.StoreImportResult, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["customer_code"]; !ok {
		return nil, fmt.Errorf("CSV header must contain customer_code (expected columns: %s)", strings.Join(storeImportColumns, ","))
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	result := &models.StoreImportResult{}
	dir := s.app.Storage.StoreDirectory()
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		code := field(row, "customer_code")
		if code == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing customer_code", line))
			continue
		}

		store := &models.Store{
			CustomerCode: code,
			Name:         field(row, "name"),
			Region:       field(row, "region"),
			Address:      field(row, "address"),
			CreatedAt:    time.Now(),
		}
		if v, err := strconv.ParseFloat(field(row, "latitude"), 64); err == nil {
			store.Latitude = v
		}
		if v, err := strconv.ParseFloat(field(row, "longitude"), 64); err == nil {
			store.Longitude = v
		}
		if brands := field(row, "brand_names"); brands != "" {
			for _, b := range strings.Split(brands, ";") {
				if b = strings.TrimSpace(b); b != "" {
					store.BrandNames = append(store.BrandNames, b)
				}
			}
		}

		created, err := dir.Upsert(r.Context(), store)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result, nil
}
