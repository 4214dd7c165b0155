package lang

import (
	"github.com/smacker/go-tree-sitter/php"
)

// PHP is the name under which the PHP grammar is registered.
const PHP = "php"

func init() {
	Languages[PHP] = &Language{
		Name:       PHP,
		Extensions: []string{".php"},
		lang:       php.GetLanguage(),
	}
}
