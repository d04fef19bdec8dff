package tipy

import (
	"strings"

	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

var pluralizer = pluralize.NewClient()

// TableName derives the table of a model from its name: the snake_case form
// with the last word pluralized, so BlogPost maps to blog_posts.
func TableName(modelName string) string {
	snake := strcase.ToSnake(modelName)
	idx := strings.LastIndex(snake, "_")
	if idx < 0 {
		return pluralizer.Plural(snake)
	}
	return snake[:idx+1] + pluralizer.Plural(snake[idx+1:])
}

// AttributeName converts a column name into the attribute name used by
// records (created_at -> createdAt).
func AttributeName(field string) string {
	return strcase.ToLowerCamel(field)
}

// foreignKeyColumn is the conventional column referencing modelName: <model>_id.
func foreignKeyColumn(modelName string) string {
	return strcase.ToSnake(modelName) + "_id"
}
