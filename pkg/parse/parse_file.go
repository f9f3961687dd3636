package parse

import (
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/kubernetes/scheme"
)

// document is the result of decoding one manifest document. Exactly one of
// obj and err is set.
type document struct {
	obj *unstructured.Unstructured
	err error
}

// parseFile decodes every document in the file at path with the passed
// contents.
func parseFile(path string, contents []byte) []document {
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return parseYAMLFile(contents)
	case ".json":
		return parseJSONFile(contents)
	default:
		return nil
	}
}

func isEmptyYAMLDocument(document string) bool {
	lines := strings.Split(document, "\n")
	for _, line := range lines {
		if len(strings.TrimSpace(line)) == 0 {
			// Ignore empty/whitespace-only lines.
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			// Ignore comment lines.
			continue
		}
		if strings.TrimSpace(line) == "---" {
			continue
		}
		return false
	}
	return true
}

func parseYAMLFile(contents []byte) []document {
	// We have to manually split documents with the YAML separator since by default
	// yaml.Unmarshal only unmarshalls the first document, but a file may contain multiple.
	var result []document

	// A newline followed by triple-dash begins a new YAML document, so this is safe.
	docs := strings.Split(string(contents), "\n---")
	for _, doc := range docs {
		if isEmptyYAMLDocument(doc) {
			// Kubernetes ignores empty documents.
			continue
		}

		u := &unstructured.Unstructured{}
		_, _, err := scheme.Codecs.UniversalDeserializer().Decode([]byte(doc), nil, u)
		if err != nil {
			result = append(result, document{err: err})
			continue
		}
		result = append(result, document{obj: u})
	}
	return result
}

func parseJSONFile(contents []byte) []document {
	if len(strings.TrimSpace(string(contents))) == 0 {
		// While an empty files is not valid JSON, Kubernetes allows empty JSON
		// files when applying multiple files.
		return nil
	}
	// A single JSON file must contain exactly one Kubernetes object.
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(contents); err != nil {
		return []document{{err: err}}
	}
	return []document{{obj: u}}
}
