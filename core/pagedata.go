package core

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPageData decodes a route's index.data.yml. A missing file is an empty
// data set.
func LoadPageData(path string) (map[string]interface{}, error) {
	data := map[string]interface{}{}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}
