package retrieval

import "fmt"

// Mode selects which indexes serve a query.
type Mode int

const (
	// ModeAuto resolves to ModeHybrid when both indexes are populated,
	// else degrades to whichever single index has data.
	ModeAuto Mode = iota
	ModeSemanticOnly
	ModeLexicalOnly
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeSemanticOnly:
		return "semantic_only"
	case ModeLexicalOnly:
		return "lexical_only"
	case ModeHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// resolve maps the requested mode to the mode that will actually run,
// based on index population. The second return reports whether the
// resolution is a degradation that must be surfaced to the caller.
func (e *Engine) resolve(mode Mode) (Mode, bool, string) {
	semPopulated := e.semantic.Len() > 0 && e.embedder != nil
	lexPopulated := e.lexical.Len() > 0

	if mode != ModeAuto {
		return mode, false, ""
	}

	switch {
	case semPopulated && lexPopulated:
		return ModeHybrid, false, ""
	case semPopulated:
		return ModeSemanticOnly, true, "lexical index empty"
	case lexPopulated:
		return ModeLexicalOnly, true, "semantic index empty or embedder not configured"
	default:
		return ModeLexicalOnly, true, "no index populated"
	}
}
