/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sqlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "numeric literal",
			sql:  "SELECT * FROM users WHERE id = 123",
			want: "SELECT * FROM users WHERE id = ?",
		},
		{
			name: "decimal literal",
			sql:  "SELECT * FROM products WHERE price > 19.99",
			want: "SELECT * FROM products WHERE price > ?",
		},
		{
			name: "single quoted string",
			sql:  "SELECT * FROM users WHERE name = 'John'",
			want: "SELECT * FROM users WHERE name = ?",
		},
		{
			name: "double quoted string",
			sql:  `SELECT * FROM users WHERE email = "test@example.com"`,
			want: "SELECT * FROM users WHERE email = ?",
		},
		{
			name: "uuid",
			sql:  "SELECT * FROM resources WHERE uuid = 'a1b2c3d4-e5f6-7890-abcd-ef1234567890'",
			want: "SELECT * FROM resources WHERE uuid = ?",
		},
		{
			name: "bare uppercase uuid",
			sql:  "DELETE FROM sessions WHERE id = A1B2C3D4-E5F6-7890-ABCD-EF1234567890",
			want: "DELETE FROM sessions WHERE id = ?",
		},
		{
			name: "in list of numbers",
			sql:  "SELECT * FROM users WHERE id IN (1, 2, 3, 4, 5)",
			want: "SELECT * FROM users WHERE id IN (?)",
		},
		{
			name: "in list of strings",
			sql:  "SELECT * FROM users WHERE status IN ('active', 'pending', 'approved')",
			want: "SELECT * FROM users WHERE status IN (?)",
		},
		{
			name: "whitespace",
			sql:  "SELECT  *   FROM   users \n\t WHERE  id = 123  ",
			want: "SELECT * FROM users WHERE id = ?",
		},
		{
			name: "identifiers with digits are kept",
			sql:  "SELECT user_123.name FROM user_123 WHERE user_123.id = 456",
			want: "SELECT user_123.name FROM user_123 WHERE user_123.id = ?",
		},
		{
			name: "complex query",
			sql: `SELECT users.*, posts.title
FROM users
INNER JOIN posts ON posts.user_id = users.id
WHERE users.id = 123
  AND posts.created_at > '2024-01-01'
  AND posts.status IN ('published', 'draft')
LIMIT 10`,
			want: "SELECT users.*, posts.title FROM users INNER JOIN posts ON posts.user_id = users.id " +
				"WHERE users.id = ? AND posts.created_at > ? AND posts.status IN (?) LIMIT ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Normalize(tt.sql)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeBlankInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\t"} {
		got, ok := Normalize(in)
		assert.False(t, ok)
		assert.Empty(t, got)

		fp, ok := Fingerprint(in)
		assert.False(t, ok)
		assert.Empty(t, fp)
	}
}

func TestFingerprintIgnoresLiteralsAndWhitespace(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"SELECT * FROM users WHERE id = 1", "SELECT  *  FROM users WHERE id = 99999"},
		{"SELECT * FROM users WHERE name = 'a'", "SELECT * FROM users\nWHERE name = 'something else'"},
		{"SELECT * FROM t WHERE id IN (1,2)", "SELECT * FROM t WHERE id IN (3, 4, 5, 6)"},
		{"UPDATE t SET v = 1.5 WHERE id = 2", "UPDATE t SET v = 20 WHERE id = 3"},
	}

	for _, p := range pairs {
		a, ok := Fingerprint(p[0])
		require.True(t, ok)

		b, ok := Fingerprint(p[1])
		require.True(t, ok)

		assert.Equal(t, a, b, "%q vs %q", p[0], p[1])
		assert.Len(t, a, FingerprintLength)
	}
}

func TestFingerprintDistinguishesShapes(t *testing.T) {
	t.Parallel()

	a, _ := Fingerprint("SELECT * FROM users WHERE id = 1")
	b, _ := Fingerprint("SELECT * FROM posts WHERE id = 1")

	assert.NotEqual(t, a, b)
}

func TestOperationAndTable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT", Operation("select * from users"))
	assert.Equal(t, "INSERT", Operation("INSERT INTO posts (a) VALUES (1)"))
	assert.Empty(t, Operation("EXPLAIN select 1"))
	assert.Empty(t, Operation(""))

	assert.Equal(t, "users", Table(`SELECT * FROM "users" WHERE id = 1`))
	assert.Equal(t, "posts", Table("INSERT INTO posts (a) VALUES (1)"))
	assert.Equal(t, "accounts", Table("UPDATE accounts SET x = 1"))
	assert.Empty(t, Table("SELECT 1"))
}
