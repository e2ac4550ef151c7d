package sqlserver

import (
	"testing"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestSQLServerDialect(t *testing.T) {
	h := sqlServerHandler{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Quote simple", h.QuoteIdentifier("vendas"), "[vendas]"},
		{"Quote bracket", h.QuoteIdentifier("a]b"), "[a]]b]"},
		{"Placeholder", h.Placeholder(4), "@p4"},
		{"Integer", h.ColumnType(database.TypeInteger), "BIGINT"},
		{"Real", h.ColumnType(database.TypeReal), "FLOAT"},
		{"Text", h.ColumnType(database.TypeText), "NVARCHAR(MAX)"},
		{"Drop", h.DropTableSQL("[itens]"), "IF OBJECT_ID(N'[itens]', N'U') IS NOT NULL DROP TABLE [itens]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSQLServerConnString(t *testing.T) {
	got := sqlServerHandler{}.connString(config.DatabaseConfig{User: "sa", Password: "p@ss", DBName: "notas"}, "db", 1433)
	assert.Equal(t, "sqlserver://sa:p%40ss@db:1433?database=notas", got)
}

func TestSQLServerPortFallback(t *testing.T) {
	h := sqlServerHandler{}
	assert.Equal(t, 1433, h.port(config.DatabaseConfig{}))
	assert.Equal(t, 14330, h.port(config.DatabaseConfig{Port: 14330}))
	assert.Nil(t, h.ReadOnlyTx().Options, "the driver rejects read-only transactions")
}
