package model

// Hierarchy is the discovered vehicle graph, in the order the site lists it.
type Hierarchy struct {
	Makes []Make `json:"makes"`
}

// Make is a top-level hierarchy node.
type Make struct {
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Years []Year `json:"years"`
}

// Year is a model year under a make.
type Year struct {
	Year   int     `json:"year"`
	YearID int     `json:"year_id"`
	Models []Model `json:"models"`
}

// Model is a leaf node. ApplicationID identifies the application page
// listing the parts that fit this make, year and model.
type Model struct {
	Model         string `json:"model"`
	ApplicationID int    `json:"application_id"`
}

// Application is one unit of page-crawling work.
type Application struct {
	ID      int
	Vehicle VehicleConfig
}

// Applications flattens the hierarchy into crawl order.
// An application id listed under more than one model appears once, at its
// first position.
func (h *Hierarchy) Applications() []Application {
	var apps []Application
	seen := make(map[int]struct{})
	for _, mk := range h.Makes {
		for _, yr := range mk.Years {
			for _, md := range yr.Models {
				if _, ok := seen[md.ApplicationID]; ok {
					continue
				}
				seen[md.ApplicationID] = struct{}{}
				apps = append(apps, Application{
					ID: md.ApplicationID,
					Vehicle: VehicleConfig{
						Make:  mk.Name,
						Year:  yr.Year,
						Model: md.Model,
					},
				})
			}
		}
	}
	return apps
}

// ApplicationIDs returns the set of application ids in the hierarchy.
func (h *Hierarchy) ApplicationIDs() IntSet {
	ids := make(IntSet)
	for _, app := range h.Applications() {
		ids.Add(app.ID)
	}
	return ids
}
