package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"studyrag/internal/chunkstore"
	"studyrag/internal/indexer"
	"studyrag/internal/logger"
	"studyrag/internal/service"
	"studyrag/internal/service/mocks"
	"studyrag/internal/storage"
)

func init() {
	logger.SetDefault(logger.Nop())
}

// withURLParam attaches a chi route parameter to the request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := v.(string); ok {
		buf.WriteString(s)
		return &buf
	}
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

func TestMaterialHandler_Create(t *testing.T) {
	doc := []byte("# Cells\n\nThe cell is the basic unit of life.")

	tests := []struct {
		name       string
		body       any
		mockSetup  func(*mocks.MockStudyService)
		wantStatus int
		wantError  string
	}{
		{
			name: "created",
			body: CreateMaterialRequest{
				SectionID:     2,
				Filename:      "cells.md",
				Type:          "lecture_notes",
				ContentBase64: base64.StdEncoding.EncodeToString(doc),
			},
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().
					IngestMaterial(gomock.Any(), service.IngestRequest{
						SectionID: 2,
						Filename:  "cells.md",
						Type:      storage.MaterialLectureNotes,
						Data:      doc,
					}).
					Return(&indexer.Result{Filename: "cells.md", Status: indexer.StatusSuccess, Chunks: 1, Embedded: 1}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown field",
			body:       `{"section_id":2,"filename":"a.md","content_base64":"YQ==","extra":1}`,
			mockSetup:  func(m *mocks.MockStudyService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "bad base64",
			body:       CreateMaterialRequest{SectionID: 2, Filename: "a.md", ContentBase64: "%%%"},
			mockSetup:  func(m *mocks.MockStudyService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "content_base64 is not valid base64",
		},
		{
			name: "validation error",
			body: CreateMaterialRequest{SectionID: 99, Filename: "a.md", ContentBase64: "YQ=="},
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().IngestMaterial(gomock.Any(), gomock.Any()).
					Return(nil, &service.ValidationError{Field: "section_id", Message: "unknown section"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation error on field section_id: unknown section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockStudyService(ctrl)
			tt.mockSetup(svc)
			handler := NewMaterialHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/materials", jsonBody(t, tt.body))
			w := httptest.NewRecorder()
			handler.Create(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Create() status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantError != "" {
				var resp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if resp.Error != tt.wantError {
					t.Errorf("Create() error = %q, want %q", resp.Error, tt.wantError)
				}
				return
			}
			var res indexer.Result
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if res.Status != indexer.StatusSuccess || res.Chunks != 1 {
				t.Errorf("Create() result = %+v", res)
			}
		})
	}
}

func TestMaterialHandler_DeleteAndBackfill(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockStudyService(ctrl)
	handler := NewMaterialHandler(svc)

	svc.EXPECT().DeleteMaterial(gomock.Any(), "m1").Return(nil)
	w := httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/api/materials/m1", nil), "id", "m1"))
	if w.Code != http.StatusNoContent {
		t.Errorf("Delete() status = %d, want 204", w.Code)
	}

	svc.EXPECT().DeleteMaterial(gomock.Any(), "gone").Return(service.ErrNotFound)
	w = httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/api/materials/gone", nil), "id", "gone"))
	if w.Code != http.StatusNotFound {
		t.Errorf("Delete() status = %d, want 404", w.Code)
	}

	svc.EXPECT().BackfillMaterial(gomock.Any(), "m1").Return(chunkstore.BackfillResult{Attempted: 3, Embedded: 2, Remaining: 1}, nil)
	w = httptest.NewRecorder()
	handler.Backfill(w, withURLParam(httptest.NewRequest(http.MethodPost, "/api/materials/m1/backfill", nil), "id", "m1"))
	if w.Code != http.StatusOK {
		t.Fatalf("Backfill() status = %d, want 200", w.Code)
	}
	var res chunkstore.BackfillResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Remaining != 1 {
		t.Errorf("Backfill() remaining = %d, want 1", res.Remaining)
	}
}
