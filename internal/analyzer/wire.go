package analyzer

import "github.com/dgallion1/omrgest/internal/omr"

// operation is the body returned by GET on an analyze Operation-Location.
type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *serviceError  `json:"error"`
}

type analyzeResult struct {
	APIVersion string `json:"apiVersion"`
	ModelID    string `json:"modelId"`
	Pages      []page `json:"pages"`
}

type page struct {
	PageNumber     int             `json:"pageNumber"`
	Width          float64         `json:"width"`
	Height         float64         `json:"height"`
	Unit           string          `json:"unit"`
	SelectionMarks []selectionMark `json:"selectionMarks"`
}

// selectionMark mirrors the service schema. Every field may be absent, and
// the flat polygon may contain nulls.
type selectionMark struct {
	State      *string    `json:"state"`
	Confidence *float64   `json:"confidence"`
	Polygon    []*float64 `json:"polygon"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error *serviceError `json:"error"`
}

// toPages converts the service payload into pipeline input. A trailing odd
// polygon entry becomes a point with no Y.
func toPages(res *analyzeResult) []omr.Page {
	if res == nil {
		return nil
	}
	pages := make([]omr.Page, 0, len(res.Pages))
	for _, p := range res.Pages {
		out := omr.Page{
			Number:         p.PageNumber,
			SelectionMarks: make([]omr.RawMark, 0, len(p.SelectionMarks)),
		}
		for _, sm := range p.SelectionMarks {
			out.SelectionMarks = append(out.SelectionMarks, omr.RawMark{
				State:      sm.State,
				Confidence: sm.Confidence,
				Polygon:    toPoints(sm.Polygon),
			})
		}
		pages = append(pages, out)
	}
	return pages
}

func toPoints(flat []*float64) []omr.Point {
	points := make([]omr.Point, 0, (len(flat)+1)/2)
	for i := 0; i < len(flat); i += 2 {
		pt := omr.Point{X: flat[i]}
		if i+1 < len(flat) {
			pt.Y = flat[i+1]
		}
		points = append(points, pt)
	}
	return points
}
