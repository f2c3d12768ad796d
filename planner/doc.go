// Package planner converts natural-language requests into ordered
// capability calls by prompting a model.Provider with the capabilities a
// dispatcher offers and parsing the JSON array it answers with.
package planner
