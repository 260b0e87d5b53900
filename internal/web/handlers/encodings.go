package handlers

import (
	"log"
	"net/http"

	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store"
)

// EncodingsHandler rebuilds and inspects course reference sets.
type EncodingsHandler struct {
	students store.StudentStore
	refs     *refstore.Repository
	detector recognition.Detector
}

func NewEncodingsHandler(students store.StudentStore, refs *refstore.Repository, detector recognition.Detector) *EncodingsHandler {
	return &EncodingsHandler{students: students, refs: refs, detector: detector}
}

type rebuildResponse struct {
	Encoded    int                      `json:"encoded"`
	Skipped    int                      `json:"skipped"`
	Outcomes   []refstore.EncodeOutcome `json:"outcomes"`
	Duplicates []duplicatePair          `json:"possible_duplicates,omitempty"`
}

// duplicatePair is an advisory warning that two roll numbers look
// like the same person.
type duplicatePair struct {
	StudentA int64   `json:"student_a"`
	StudentB int64   `json:"student_b"`
	Score    float64 `json:"score"`
}

// Rebuild re-encodes every student in the course from their
// enrollment image. Students whose image yields no face are reported,
// not silently dropped. The new reference set replaces the old one
// wholesale and is persisted before the response.
func (h *EncodingsHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	roster, err := h.students.StudentsByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("encodings: reading roster for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read roster")
		return
	}

	inputs := make([]refstore.EnrollInput, 0, len(roster))
	for _, s := range roster {
		inputs = append(inputs, refstore.EnrollInput{
			StudentID: s.ID,
			RollNo:    s.RollNo,
			Name:      s.Name,
			ImagePath: s.ImagePath,
		})
	}

	set, outcomes, err := h.refs.Rebuild(r.Context(), courseID, inputs, h.detector)
	if err != nil {
		log.Printf("encodings: rebuilding course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to rebuild encodings")
		return
	}

	// Mirror vectors into the relational store so enrollment state
	// survives snapshot loss. Mirror failures are logged, not fatal:
	// the snapshot is already the source of truth.
	encoded := 0
	for _, o := range outcomes {
		if o.Status == refstore.StatusEncoded {
			encoded++
			if ref, found := set.Get(o.StudentID); found {
				if err := h.students.SetReferenceEmbedding(r.Context(), o.StudentID, ref.Vector); err != nil {
					log.Printf("encodings: mirroring embedding for student %d: %v", o.StudentID, err)
				}
			}
			continue
		}
		if err := h.students.SetReferenceEmbedding(r.Context(), o.StudentID, nil); err != nil {
			log.Printf("encodings: clearing embedding for student %d: %v", o.StudentID, err)
		}
	}

	var duplicates []duplicatePair
	for _, p := range recognition.FindDuplicates(set, recognition.DefaultDuplicateThreshold) {
		duplicates = append(duplicates, duplicatePair{StudentA: p.StudentA, StudentB: p.StudentB, Score: p.Score})
	}

	respondJSON(w, http.StatusOK, rebuildResponse{
		Encoded:    encoded,
		Skipped:    len(outcomes) - encoded,
		Outcomes:   outcomes,
		Duplicates: duplicates,
	})
}

type encodingInfo struct {
	StudentID    int64  `json:"student_id"`
	RollNo       string `json:"roll_no"`
	Name         string `json:"name"`
	EmbeddingLen int    `json:"embedding_len"`
}

// List reports which students have a reference embedding.
func (h *EncodingsHandler) List(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	set := h.refs.Get(courseID)
	out := make([]encodingInfo, 0, set.Len())
	for _, ref := range set.References() {
		out = append(out, encodingInfo{
			StudentID:    ref.StudentID,
			RollNo:       ref.RollNo,
			Name:         ref.Name,
			EmbeddingLen: len(ref.Vector),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
