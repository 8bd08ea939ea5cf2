package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed nodes.sql
var nodesSQL string

//go:embed edges.sql
var edgesSQL string

//go:embed cache.sql
var cacheSQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"init_documents",
	"upsert_document",
	"select_document",
	"delete_document",
	"select_documents_by_vector",
	"select_documents_by_text",
}

var NodesFunctions = []string{
	"init_nodes",
	"upsert_node",
	"delete_node",
	"select_node",
	"select_node_by_name",
	"select_nodes_by_names",
	"select_nodes_by_ids",
	"select_nodes_by_type",
	"search_nodes",
	"select_neighbors",
}

var EdgesFunctions = []string{
	"init_edges",
	"upsert_edge",
	"delete_edge",
	"select_edge",
	"traverse_nodes",
	"select_subgraph_edges",
	"find_weighted_paths",
}

var CacheFunctions = []string{
	"init_cache",
	"select_cache_by_hash",
	"upsert_cache",
	"increment_cache_hit",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	return loadSqlFile(db, documentsSQL, DocumentsFunctions, "documents", force)
}

// LoadNodesSql loads node-related SQL functions
func LoadNodesSql(db *sql.DB, force bool) error {
	return loadSqlFile(db, nodesSQL, NodesFunctions, "nodes", force)
}

// LoadEdgesSql loads edge-related SQL functions
func LoadEdgesSql(db *sql.DB, force bool) error {
	return loadSqlFile(db, edgesSQL, EdgesFunctions, "edges", force)
}

// LoadCacheSql loads cache-related SQL functions
func LoadCacheSql(db *sql.DB, force bool) error {
	return loadSqlFile(db, cacheSQL, CacheFunctions, "cache", force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadDocumentsSql(db, force); err != nil {
		return err
	}

	if err := LoadNodesSql(db, force); err != nil {
		return err
	}

	if err := LoadEdgesSql(db, force); err != nil {
		return err
	}

	if err := LoadCacheSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadSqlFile executes one embedded SQL file and verifies its functions.
// If force is false and all functions already exist, the file is skipped.
func loadSqlFile(db *sql.DB, sqlFile string, functions []string, name string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(sqlFile)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
