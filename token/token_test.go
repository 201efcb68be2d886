package token

import "testing"

func TestCreateToken(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		lexeme    string
		want      Token
	}{
		{
			name:      "assign token",
			tokenType: ASSIGN,
			lexeme:    "=",
			want:      Token{TokenType: ASSIGN, Lexeme: "=", Line: 1, Start: 0, End: 1},
		},
		{
			name:      "mult token",
			tokenType: MULT,
			lexeme:    "*",
			want:      Token{TokenType: MULT, Lexeme: "*", Line: 1, Start: 0, End: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateToken(tt.tokenType, tt.lexeme, 1, 0, 1)
			if got != tt.want {
				t.Errorf("CreateToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateLiteralToken(t *testing.T) {
	got := CreateLiteralToken(INT, "42", int64(42), 3, 10, 12)
	if got.Literal != int64(42) {
		t.Errorf("Literal = %v, want int64(42)", got.Literal)
	}
	if got.Lexeme != "42" || got.Line != 3 || got.Start != 10 || got.End != 12 {
		t.Errorf("unexpected token fields: %+v", got)
	}
}

func TestKeywordTable(t *testing.T) {
	for word, want := range map[string]TokenType{
		"if": IF, "while": WHILE, "fun": FUNC, "class": CLASS,
		"await": AWAIT, "yield": YIELD, "static": STATIC,
		"true": TRUE, "false": FALSE, "nil": NULL, "nan": NAN, "inf": INF,
	} {
		got, ok := KeyWords[word]
		if !ok {
			t.Errorf("keyword %q missing from table", word)
			continue
		}
		if got != want {
			t.Errorf("KeyWords[%q] = %v, want %v", word, got, want)
		}
	}
	if _, ok := KeyWords["notAKeyword"]; ok {
		t.Errorf("unexpected keyword entry for plain identifier")
	}
}

func TestIsAssignmentOperator(t *testing.T) {
	for _, tt := range []TokenType{ASSIGN, ADD_ASSIGN, SHIFT_RIGHT_ASSIGN} {
		if !tt.IsAssignmentOperator() {
			t.Errorf("%v.IsAssignmentOperator() = false, want true", tt)
		}
	}
	if ADD.IsAssignmentOperator() {
		t.Errorf("ADD.IsAssignmentOperator() = true, want false")
	}
}

func TestCompoundBinaryOp(t *testing.T) {
	op, ok := CompoundBinaryOp(ADD_ASSIGN)
	if !ok || op != ADD {
		t.Errorf("CompoundBinaryOp(ADD_ASSIGN) = (%v, %v), want (ADD, true)", op, ok)
	}
	if _, ok := CompoundBinaryOp(ASSIGN); ok {
		t.Errorf("CompoundBinaryOp(ASSIGN) should not be a compound op")
	}
}
