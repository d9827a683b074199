package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
)

// Outcome classifies what a frame yielded. "No face this tick" is a
// normal result, not an error: callers branch on data instead of
// catching exceptions.
type Outcome int

const (
	// OutcomeNoFace: the detector found nothing.
	OutcomeNoFace Outcome = iota
	// OutcomeLowConfidence: faces were found but all fell below the
	// operator-configured detection confidence threshold.
	OutcomeLowConfidence
	// OutcomeExtracted: an embedding was produced.
	OutcomeExtracted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoFace:
		return "no_face"
	case OutcomeLowConfidence:
		return "low_confidence"
	case OutcomeExtracted:
		return "extracted"
	}
	return "unknown"
}

// Extraction is the result of embedding one detected face.
type Extraction struct {
	Outcome    Outcome
	Embedding  []float32
	Confidence float32
	BBox       [4]float32
}

// Extractor wires the detector and embedder into the two operations the
// control loop needs: best single face (enrollment) and all acceptable
// faces (attendance).
type Extractor struct {
	detector *Detector
	embedder *Embedder
	maxFaces int
}

// NewExtractor loads both models from cfg.ModelsDir.
func NewExtractor(cfg config.VisionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "face_recognition_sface_2021dec.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath, "dim", cfg.EmbeddingDim)
	emb, err := NewEmbedder(embPath, cfg.EmbeddingDim)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Extractor{detector: det, embedder: emb, maxFaces: cfg.MaxFaces}, nil
}

// Dim returns the embedding dimensionality.
func (e *Extractor) Dim() int { return e.embedder.Dim() }

// ExtractBest embeds the largest face above minConfidence. Used by
// enrollment, where exactly one subject faces the camera.
func (e *Extractor) ExtractBest(img image.Image, minConfidence float64) (Extraction, error) {
	detections, err := e.detect(img)
	if err != nil {
		return Extraction{}, err
	}
	if len(detections) == 0 {
		return Extraction{Outcome: OutcomeNoFace}, nil
	}

	// Detections arrive sorted by area; the largest face is the subject.
	best := detections[0]
	if float64(best.Confidence) < minConfidence {
		return Extraction{Outcome: OutcomeLowConfidence, Confidence: best.Confidence, BBox: best.BBox}, nil
	}
	return e.embed(img, best)
}

// ExtractAll embeds every face above minConfidence, largest first,
// capped at the configured maximum to bound per-frame inference cost.
// When every face is below the threshold the largest is embedded anyway,
// matching the lenient attendance-path behavior.
func (e *Extractor) ExtractAll(img image.Image, minConfidence float64) ([]Extraction, error) {
	detections, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return []Extraction{{Outcome: OutcomeNoFace}}, nil
	}

	accepted := detections[:0]
	for _, det := range detections {
		if float64(det.Confidence) >= minConfidence {
			accepted = append(accepted, det)
		}
	}
	if len(accepted) == 0 {
		accepted = detections[:1]
	}
	if len(accepted) > e.maxFaces {
		accepted = accepted[:e.maxFaces]
	}

	results := make([]Extraction, 0, len(accepted))
	for _, det := range accepted {
		ex, err := e.embed(img, det)
		if err != nil {
			return nil, err
		}
		if ex.Outcome == OutcomeExtracted {
			results = append(results, ex)
		}
	}
	if len(results) == 0 {
		return []Extraction{{Outcome: OutcomeNoFace}}, nil
	}
	return results, nil
}

func (e *Extractor) detect(img image.Image) ([]Detection, error) {
	bounds := img.Bounds()

	start := time.Now()
	input := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := e.detector.Detect(input, bounds.Dx(), bounds.Dy())
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return detections, nil
}

func (e *Extractor) embed(img image.Image, det Detection) (Extraction, error) {
	crop := cropFace(img, det.BBox)
	if crop == nil {
		return Extraction{Outcome: OutcomeNoFace}, nil
	}

	start := time.Now()
	input := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)
	embedding, err := e.embedder.Extract(input)
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return Extraction{}, fmt.Errorf("embed: %w", err)
	}

	return Extraction{
		Outcome:    OutcomeExtracted,
		Embedding:  embedding,
		Confidence: det.Confidence,
		BBox:       det.BBox,
	}, nil
}

// CropJPEG encodes the face crop behind an extraction as JPEG, for
// snapshot archiving. Returns nil when the box is degenerate.
func CropJPEG(img image.Image, bbox [4]float32, quality int) []byte {
	crop := cropFace(img, bbox)
	if crop == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: quality}); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (e *Extractor) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
