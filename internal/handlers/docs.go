package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      map[string]string{"type": typ},
	}
}

func pathParam(name, typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      map[string]string{"type": typ},
	}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func pageOf(item string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count":       map[string]string{"type": "integer"},
			"page":        map[string]string{"type": "integer"},
			"page_size":   map[string]string{"type": "integer"},
			"total_pages": map[string]string{"type": "integer"},
			"results":     map[string]interface{}{"type": "array", "items": ref(item)},
		},
	}
}

var pagingParams = []map[string]interface{}{
	queryParam("page", "integer", "Page number (default: 1)"),
	queryParam("page_size", "integer", "Records per page (default: 25, capped at the configured maximum)"),
}

func withPaging(params ...map[string]interface{}) []map[string]interface{} {
	return append(params, pagingParams...)
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the UK Weather Data API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	errorResponses := map[string]interface{}{
		"400": jsonResponse("Invalid request", ref("Error")),
		"404": jsonResponse("Not found", ref("Error")),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "UK Weather Data API",
			"description": "Met Office regional climate series: monthly and annual observations per region and parameter",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "API overview",
					"responses": map[string]interface{}{"200": jsonResponse("Endpoints and filter examples", map[string]string{"type": "object"})},
				},
			},
			"/regions/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List regions",
					"parameters": withPaging(queryParam("search", "string", "Case-insensitive match on code or name")),
					"responses":  map[string]interface{}{"200": jsonResponse("Regions", pageOf("Region"))},
				},
			},
			"/regions/{code}/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get a region",
					"parameters": []map[string]interface{}{pathParam("code", "string", "Region code, e.g. UK")},
					"responses": map[string]interface{}{
						"200": jsonResponse("Region", ref("Region")),
						"404": errorResponses["404"],
					},
				},
			},
			"/parameters/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List parameters",
					"parameters": withPaging(queryParam("search", "string", "Case-insensitive match on code or name")),
					"responses":  map[string]interface{}{"200": jsonResponse("Parameters", pageOf("Parameter"))},
				},
			},
			"/parameters/{code}/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get a parameter",
					"parameters": []map[string]interface{}{pathParam("code", "string", "Parameter code, e.g. Tmax")},
					"responses": map[string]interface{}{
						"200": jsonResponse("Parameter", ref("Parameter")),
						"404": errorResponses["404"],
					},
				},
			},
			"/observations/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List observations",
					"description": "Filters combine with AND. Default ordering is newest year first with the annual value ahead of the months.",
					"parameters": withPaging(
						queryParam("region", "string", "Region code"),
						queryParam("parameter", "string", "Parameter code"),
						queryParam("year", "integer", "Exact year"),
						queryParam("month", "integer", "Month 1-12"),
						queryParam("annual", "boolean", "Only annual values"),
						queryParam("year_from", "integer", "Lowest year, inclusive"),
						queryParam("year_to", "integer", "Highest year, inclusive"),
						queryParam("search", "string", "Match on region or parameter code and name"),
						queryParam("ordering", "string", "Comma separated fields from year, month, value, created_at; prefix with - for descending"),
					),
					"responses": map[string]interface{}{
						"200": jsonResponse("Observations", pageOf("Observation")),
						"400": errorResponses["400"],
					},
				},
			},
			"/observations/{id}/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get an observation",
					"parameters": []map[string]interface{}{pathParam("id", "integer", "Observation id")},
					"responses": map[string]interface{}{
						"200": jsonResponse("Observation", ref("Observation")),
						"404": errorResponses["404"],
					},
				},
			},
			"/observations/summary/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Per series summary",
					"parameters": []map[string]interface{}{
						queryParam("region", "string", "Region code"),
						queryParam("parameter", "string", "Parameter code"),
						queryParam("year_from", "integer", "Lowest year, inclusive"),
						queryParam("year_to", "integer", "Highest year, inclusive"),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Summaries", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"count":   map[string]string{"type": "integer"},
								"results": map[string]interface{}{"type": "array", "items": ref("Summary")},
							},
						}),
					},
				},
			},
			"/ingest/": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Ingest a dataset",
					"description": "Fetches one published dataset and stores its readings. Re-ingesting only adds keys not yet stored.",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"region":    map[string]string{"type": "string"},
										"parameter": map[string]string{"type": "string"},
										"url":       map[string]string{"type": "string"},
										"mode":      map[string]interface{}{"type": "string", "enum": []string{"annual", "monthly", "all"}},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Ingestion result", ref("IngestResult")),
						"400": jsonResponse("Invalid request", ref("IngestResult")),
						"404": jsonResponse("Unknown region or parameter", ref("IngestResult")),
						"502": jsonResponse("Upstream fetch failed", ref("IngestResult")),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": jsonResponse("API and database are healthy", map[string]string{"type": "object"}),
						"503": jsonResponse("Database unreachable", map[string]string{"type": "object"}),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"Region": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":         map[string]string{"type": "integer"},
						"code":       map[string]string{"type": "string"},
						"name":       map[string]string{"type": "string"},
						"data_count": map[string]string{"type": "integer"},
					},
				},
				"Parameter": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":         map[string]string{"type": "integer"},
						"code":       map[string]string{"type": "string"},
						"name":       map[string]string{"type": "string"},
						"unit":       map[string]string{"type": "string"},
						"data_count": map[string]string{"type": "integer"},
					},
				},
				"Observation": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":             map[string]string{"type": "integer"},
						"region":         map[string]string{"type": "string"},
						"region_name":    map[string]string{"type": "string"},
						"parameter":      map[string]string{"type": "string"},
						"parameter_name": map[string]string{"type": "string"},
						"parameter_unit": map[string]string{"type": "string"},
						"year":           map[string]string{"type": "integer"},
						"month":          map[string]interface{}{"type": "integer", "nullable": true},
						"value":          map[string]string{"type": "number"},
						"source_url":     map[string]string{"type": "string"},
						"created_at":     map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Summary": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"region":        map[string]string{"type": "string"},
						"parameter":     map[string]string{"type": "string"},
						"count":         map[string]string{"type": "integer"},
						"annual_count":  map[string]string{"type": "integer"},
						"monthly_count": map[string]string{"type": "integer"},
						"first_year":    map[string]string{"type": "integer"},
						"last_year":     map[string]string{"type": "integer"},
						"min_value":     map[string]string{"type": "number"},
						"max_value":     map[string]string{"type": "number"},
						"avg_value":     map[string]string{"type": "number"},
					},
				},
				"IngestResult": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"success":         map[string]string{"type": "boolean"},
						"records_created": map[string]string{"type": "integer"},
						"records_skipped": map[string]string{"type": "integer"},
						"region":          map[string]string{"type": "string"},
						"parameter":       map[string]string{"type": "string"},
						"url":             map[string]string{"type": "string"},
						"mode":            map[string]string{"type": "string"},
						"error":           map[string]string{"type": "string"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
