package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const sparqlResults = `<?xml version="1.0"?>
<sparql xmlns="http://www.w3.org/2005/sparql-results#">
  <head>
    <variable name="concept"/>
    <variable name="label"/>
  </head>
  <results>
    <result>
      <binding name="concept"><uri>http://example.org/c/1</uri></binding>
      <binding name="label"><literal>Chemistry</literal></binding>
    </result>
    <result>
      <binding name="concept"><uri>http://example.org/c/2</uri></binding>
      <binding name="label"><literal>Physics</literal></binding>
    </result>
  </results>
</sparql>`

func TestSPARQLQuery(t *testing.T) {
	var gotQuery, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("query")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/sparql-results+xml")
		w.Write([]byte(sparqlResults))
	}))
	defer srv.Close()

	rs, err := NewSPARQLClient().Query(context.Background(), srv.URL, "SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o }", gotQuery)
	assert.Equal(t, "application/sparql-results+xml", gotAccept)
	assert.Equal(t, []string{"concept", "label"}, rs.Variables)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "http://example.org/c/1", rs.Rows[0]["concept"])
	assert.Equal(t, "Chemistry", rs.Rows[0]["label"])
	assert.Equal(t, "Physics", rs.Rows[1]["label"])
}

func TestSPARQLQueryNonUTF8Charset(t *testing.T) {
	body := `<?xml version="1.0" encoding="ISO-8859-1"?>
<sparql xmlns="http://www.w3.org/2005/sparql-results#">
  <head><variable name="label"/></head>
  <results>
    <result>
      <binding name="label"><literal>Québec</literal></binding>
    </result>
  </results>
</sparql>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+xml; charset=ISO-8859-1")
		encoded, err := charmap.ISO8859_1.NewEncoder().String(body)
		require.NoError(t, err)
		w.Write([]byte(encoded))
	}))
	defer srv.Close()

	rs, err := NewSPARQLClient().Query(context.Background(), srv.URL, "SELECT ?label WHERE {}")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "Québec", rs.Rows[0]["label"])
}

func TestSPARQLQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSPARQLClient().Query(context.Background(), srv.URL, "SELECT * WHERE {}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSPARQLQueryClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewSPARQLClient().Query(context.Background(), srv.URL, "SELEKT")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
