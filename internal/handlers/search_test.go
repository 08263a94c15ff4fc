package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"studyrag/internal/rag"
	"studyrag/internal/service"
	"studyrag/internal/service/mocks"
	"studyrag/internal/storage"
	"studyrag/internal/structure"
)

func TestSearchRequest_Query(t *testing.T) {
	hintFloor := float32(0.4)
	tests := []struct {
		name string
		req  SearchRequest
		want rag.Query
	}{
		{
			name: "no scope searches everything",
			req:  SearchRequest{Query: "entropy", TopK: 5},
			want: rag.Query{Text: "entropy", Scope: rag.Scope{All: true}, TopK: 5},
		},
		{
			name: "material scope",
			req: SearchRequest{
				Query:               "entropy",
				MaterialIDs:         []string{"m1"},
				SimilarityThreshold: &hintFloor,
				ChapterFilter:       rag.ChapterFilter{"m1": {2}},
				ContentType:         "equation",
			},
			want: rag.Query{
				Text:          "entropy",
				Scope:         rag.Scope{MaterialIDs: []string{"m1"}},
				Threshold:     &hintFloor,
				ChapterFilter: rag.ChapterFilter{"m1": {2}},
				ContentType:   storage.ContentEquation,
			},
		},
		{
			name: "section scope",
			req:  SearchRequest{Query: "entropy", SectionIDs: []int64{4}},
			want: rag.Query{Text: "entropy", Scope: rag.Scope{SectionIDs: []int64{4}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.query()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("query() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSearchRequest_ExplicitZeroThreshold(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float32
	}{
		{name: "omitted", body: `{"query":"entropy"}`, want: nil},
		{name: "explicit zero", body: `{"query":"entropy","similarity_threshold":0}`, want: new(float32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SearchRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got := req.query().Threshold; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("query().Threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchHandler_Search(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		hints      bool
		mockSetup  func(*mocks.MockStudyService)
		wantStatus int
		wantCount  int
	}{
		{
			name: "search results",
			body: SearchRequest{Query: "osmosis", SectionIDs: []int64{1}},
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().
					Search(gomock.Any(), rag.Query{Text: "osmosis", Scope: rag.Scope{SectionIDs: []int64{1}}}).
					Return([]rag.Result{{ChunkID: "c1", Similarity: 0.9}, {ChunkID: "c2", Similarity: 0.7}}, nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:  "hints may be empty",
			body:  SearchRequest{Query: "osmosis"},
			hints: true,
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().Hints(gomock.Any(), gomock.Any()).Return([]rag.Result{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "invalid query",
			body: SearchRequest{},
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: %w", service.ErrInvalidInput, rag.ErrInvalidQuery))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "embedding provider down",
			body: SearchRequest{Query: "osmosis"},
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: embed query", service.ErrExternalService))
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "malformed body",
			body:       "{not json",
			mockSetup:  func(m *mocks.MockStudyService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockStudyService(ctrl)
			tt.mockSetup(svc)
			handler := NewSearchHandler(svc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/search", jsonBody(t, tt.body))
			if tt.hints {
				handler.Hints(w, req)
			} else {
				handler.Search(w, req)
			}

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var results []rag.Result
			if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
				t.Fatalf("decode results: %v", err)
			}
			if results == nil {
				t.Error("results encoded as null, want array")
			}
			if len(results) != tt.wantCount {
				t.Errorf("got %d results, want %d", len(results), tt.wantCount)
			}
		})
	}
}

func TestSearchHandler_Structure(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		mockSetup  func(*mocks.MockStudyService)
		wantStatus int
	}{
		{
			name: "ok",
			id:   "3",
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().SectionStructure(gomock.Any(), int64(3)).Return(&structure.SectionResult{
					SectionID: 3,
					PerMaterial: []structure.Result{{
						MaterialID:  "m1",
						HasChapters: true,
						Chapters:    []structure.Chapter{{Number: 1, Title: "Kinematics", ChunkCount: 4, Percentage: 100}},
					}},
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad id",
			id:         "abc",
			mockSetup:  func(m *mocks.MockStudyService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown section",
			id:   "8",
			mockSetup: func(m *mocks.MockStudyService) {
				m.EXPECT().SectionStructure(gomock.Any(), int64(8)).Return(nil, service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockStudyService(ctrl)
			tt.mockSetup(svc)
			handler := NewSearchHandler(svc)

			w := httptest.NewRecorder()
			req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/sections/"+tt.id+"/structure", nil), "id", tt.id)
			handler.Structure(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Structure() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var res structure.SectionResult
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if len(res.PerMaterial) != 1 || res.PerMaterial[0].Chapters[0].Title != "Kinematics" {
				t.Errorf("Structure() = %+v", res)
			}
		})
	}
}
