package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeError_IsMatchesByCode(t *testing.T) {
	sentinel := New(InsufficientFunds, "insufficient funds")
	wrapped := fmt.Errorf("approve withdrawal: %w", New(InsufficientFunds, "cashup balance too low"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, New(InvalidAmount, "")))
}

func TestCodeOfAndKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"nil", nil, OK, ""},
		{"业务错误", New(SelfTransferNotAllowed, "x"), SelfTransferNotAllowed, "SelfTransferNotAllowed"},
		{"包装后的业务错误", fmt.Errorf("tx: %w", NewErrCode(ApprovalRace)), ApprovalRace, "ApprovalRace"},
		{"越权", NewErrCode(Forbidden), Forbidden, "Forbidden"},
		{"未知错误", errors.New("boom"), ServerCommonError, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := CodeOf(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantKind, KindOf(code))
		})
	}
}

func TestWrap_KeepsCode(t *testing.T) {
	assert.Nil(t, Wrap(nil, DbError, "x"))

	err := Wrap(errors.New("deadlock"), DbError, "save bucket")
	ce, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, DbError, ce.Code)
	assert.Contains(t, ce.Msg, "deadlock")
}
