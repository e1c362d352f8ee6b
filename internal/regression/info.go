package regression

// Source values reported in Info.
const (
	SourceFile   = "file"
	SourceRemote = "remote"
)

// Info describes the model currently serving predictions.
type Info struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Source   string `json:"source"`
	Features Schema `json:"features,omitempty"`
	Loaded   bool   `json:"loaded"`
}

// Describer is implemented by predictors that can report what they serve.
type Describer interface {
	Info() Info
}

// Info reports the current model, or Loaded=false when none is installed.
func (h *Holder) Info() Info {
	m := h.current.Load()
	if m == nil {
		return Info{Source: SourceFile}
	}
	return Info{
		Name:     m.name,
		Version:  m.version,
		Source:   SourceFile,
		Features: m.Schema(),
		Loaded:   true,
	}
}

// Info reports the remote endpoint and its declared schema.
func (m *RemoteModel) Info() Info {
	return Info{
		Name:     m.name,
		Version:  m.baseURL,
		Source:   SourceRemote,
		Features: append(Schema(nil), m.schema...),
		Loaded:   true,
	}
}

var (
	_ Describer = (*Holder)(nil)
	_ Describer = (*RemoteModel)(nil)
)
