package sentinel

import (
	"fmt"
	"strings"
)

// Collection describes how a data collection exposes the bands NDVI needs.
type Collection struct {
	ID         string
	Red        string
	NIR        string
	Resolution float64
	// SCL is set for collections with a scene classification layer.
	SCL bool
}

var collections = map[string]Collection{
	"landsat-ot-l2": {
		ID:         "landsat-ot-l2",
		Red:        "B04",
		NIR:        "B05",
		Resolution: 30,
	},
	"sentinel-2-l2a": {
		ID:         "sentinel-2-l2a",
		Red:        "B04",
		NIR:        "B08",
		Resolution: 10,
		SCL:        true,
	},
}

func LookupCollection(id string) (Collection, error) {
	c, ok := collections[id]
	if !ok {
		return Collection{}, fmt.Errorf("unknown collection %q", id)
	}
	return c, nil
}

// Evalscript returns the Process API script producing four FLOAT32 bands:
// red, nir, dataMask and scene classification (0 when unavailable).
func (c Collection) Evalscript() string {
	inputs := []string{`"` + c.Red + `"`, `"` + c.NIR + `"`, `"dataMask"`}
	scl := "0"
	if c.SCL {
		inputs = append(inputs, `"SCL"`)
		scl = "sample.SCL"
	}
	return fmt.Sprintf(`
    //VERSION=3
    function setup() {
      return {
        input: [%s],
        output: {
          id: "default",
          bands: 4,
          sampleType: SampleType.FLOAT32,
        },
      }
    }

    function evaluatePixel(sample) {
      return [sample.%s, sample.%s, sample.dataMask, %s];
    }
  `, strings.Join(inputs, ", "), c.Red, c.NIR, scl)
}
