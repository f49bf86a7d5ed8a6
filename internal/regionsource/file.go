package regionsource

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a YAML regions document from path.
func LoadYAML(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open regions file: %w", err)
	}
	defer f.Close()
	return ParseYAML(f)
}

// ParseYAML decodes a YAML regions document.
func ParseYAML(r io.Reader) (*Document, error) {
	var raw rawDocument
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode yaml regions: %w", err)
	}
	return raw.toDocument()
}

// LoadJSON reads a JSON regions document from path.
func LoadJSON(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open regions file: %w", err)
	}
	defer f.Close()
	return ParseJSON(f)
}

// ParseJSON decodes a JSON regions document with the same layout as YAML.
func ParseJSON(r io.Reader) (*Document, error) {
	var raw rawDocument
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json regions: %w", err)
	}
	return raw.toDocument()
}

// WriteYAML encodes doc in the YAML layout LoadYAML reads.
func WriteYAML(w io.Writer, doc *Document) error {
	raw := fromRegions(doc.Regions)
	raw.Node.Name = doc.NodeName
	raw.Topics.Publish.CurrentRegion = doc.Topics.Region
	raw.Topics.Subscribe.Pose = doc.Topics.Pose

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("encode yaml regions: %w", err)
	}
	return enc.Close()
}
