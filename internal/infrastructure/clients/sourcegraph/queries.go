package sourcegraph

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const codeSearchDocument = `
query CodeSearch($query: String!) {
  search(query: $query, version: V3) {
    results {
      matchCount
      results {
        __typename
        ... on FileMatch {
          file {
            path
            url
            repository {
              name
            }
          }
          lineMatches {
            lineNumber
            preview
          }
        }
      }
    }
  }
}`

const symbolSearchDocument = `
query SymbolSearch($query: String!) {
  search(query: $query, version: V3) {
    results {
      matchCount
      results {
        __typename
        ... on FileMatch {
          file {
            path
            repository {
              name
            }
          }
          symbols {
            name
            kind
            containerName
            location {
              range {
                start {
                  line
                }
              }
            }
          }
        }
      }
    }
  }
}`

// operation is a parsed GraphQL query document ready to send
type operation struct {
	name     string
	document string
}

// parseOperation checks that document holds exactly one named query taking a
// $query variable.
func parseOperation(document string) (operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "search", Input: document})
	if err != nil {
		return operation{}, fmt.Errorf("invalid graphql document: %w", err)
	}
	if len(doc.Operations) != 1 {
		return operation{}, fmt.Errorf("expected 1 operation, got %d", len(doc.Operations))
	}

	op := doc.Operations[0]
	if op.Operation != ast.Query {
		return operation{}, fmt.Errorf("operation %q is a %s, not a query", op.Name, op.Operation)
	}
	if op.Name == "" {
		return operation{}, fmt.Errorf("operation must be named")
	}
	if op.VariableDefinitions.ForName("query") == nil {
		return operation{}, fmt.Errorf("operation %s does not declare $query", op.Name)
	}

	return operation{name: op.Name, document: document}, nil
}
