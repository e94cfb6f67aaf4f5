package incremental

import (
	"encoding/json"
	"fmt"

	"github.com/langtools/compilerdriver/internal/drivererr"
	"github.com/langtools/compilerdriver/internal/mdg"
)

// wireProvide and wireUse are the JSON shape of the per-file dependency
// record artifact the frontend emits after each successful compile.
type wireProvide struct {
	Aspect      string `json:"aspect"`
	Kind        string `json:"kind"`
	Name        string `json:"name,omitempty"`
	Context     string `json:"context,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type wireUse struct {
	Aspect    string `json:"aspect"`
	Kind      string `json:"kind"`
	Name      string `json:"name,omitempty"`
	Context   string `json:"context,omitempty"`
	Cascading bool   `json:"cascading"`
}

type wireRecord struct {
	Provides []wireProvide `json:"provides"`
	Uses     []wireUse     `json:"uses"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("malformed-dependency-record: "+format+": %w",
		append(args, drivererr.ErrIntegration)...)
}

func parseAspect(s string) (mdg.Aspect, error) {
	switch s {
	case "interface":
		return mdg.AspectInterface, nil
	case "implementation":
		return mdg.AspectImplementation, nil
	default:
		return 0, malformed("unknown aspect %q", s)
	}
}

// parseDesignator enforces the key invariant: nominal and
// potentialMember carry only a context, member carries both context and
// name, everything else carries only a name.
func parseDesignator(kind, name, context string) (mdg.Designator, error) {
	switch mdg.DesignatorKind(kind) {
	case mdg.DesignatorTopLevel:
		if name == "" || context != "" {
			return mdg.Designator{}, malformed("topLevel key must carry a name and no context")
		}
		return mdg.TopLevel(name), nil
	case mdg.DesignatorNominal:
		if context == "" || name != "" {
			return mdg.Designator{}, malformed("nominal key must carry a context and no name")
		}
		return mdg.Nominal(context), nil
	case mdg.DesignatorPotentialMember:
		if context == "" || name != "" {
			return mdg.Designator{}, malformed("potentialMember key must carry a context and no name")
		}
		return mdg.PotentialMember(context), nil
	case mdg.DesignatorMember:
		if context == "" || name == "" {
			return mdg.Designator{}, malformed("member key must carry both a context and a name")
		}
		return mdg.Member(context, name), nil
	case mdg.DesignatorDynamicLookup:
		if name == "" || context != "" {
			return mdg.Designator{}, malformed("dynamicLookup key must carry a name and no context")
		}
		return mdg.DynamicLookup(name), nil
	case mdg.DesignatorExternalDepend:
		if name == "" || context != "" {
			return mdg.Designator{}, malformed("externalDepend key must carry a path and no context")
		}
		return mdg.ExternalDependD(name), nil
	case mdg.DesignatorSourceFileProvide:
		if name == "" || context != "" {
			return mdg.Designator{}, malformed("sourceFileProvide key must carry a name and no context")
		}
		return mdg.SourceFileProvide(name), nil
	default:
		return mdg.Designator{}, malformed("unknown designator kind %q", kind)
	}
}

// ParseRecord decodes a per-file dependency record. Anything that fails to
// decode, or violates the designator invariants, is a
// malformed-dependency-record integration error.
func ParseRecord(data []byte) (mdg.Record, error) {
	var wr wireRecord
	if err := json.Unmarshal(data, &wr); err != nil {
		return mdg.Record{}, malformed("decoding: %v", err)
	}

	var rec mdg.Record
	for _, p := range wr.Provides {
		aspect, err := parseAspect(p.Aspect)
		if err != nil {
			return mdg.Record{}, err
		}
		desig, err := parseDesignator(p.Kind, p.Name, p.Context)
		if err != nil {
			return mdg.Record{}, err
		}
		rec.Provides = append(rec.Provides, mdg.Provided{
			Key:            mdg.Key{Aspect: aspect, Designator: desig},
			Fingerprint:    p.Fingerprint,
			HasFingerprint: p.Fingerprint != "",
		})
	}
	for _, u := range wr.Uses {
		aspect, err := parseAspect(u.Aspect)
		if err != nil {
			return mdg.Record{}, err
		}
		desig, err := parseDesignator(u.Kind, u.Name, u.Context)
		if err != nil {
			return mdg.Record{}, err
		}
		rec.Uses = append(rec.Uses, mdg.Used{
			Key:       mdg.Key{Aspect: aspect, Designator: desig},
			Cascading: u.Cascading,
		})
	}
	return rec, nil
}
