package public

import (
	"errors"

	handlershared "github.com/fenyong-next/internal/http/handlers/shared"
	"github.com/fenyong-next/internal/http/response"
	"github.com/fenyong-next/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var settlementErrorRules = []mappedHandlerError{
	{target: service.ErrTransactionInvalid, code: response.CodeBadRequest, key: "error.settlement_invalid"},
	{target: service.ErrNoApplicableRule, code: response.CodeBadRequest, key: "error.no_applicable_rule"},
	{target: service.ErrRuleAmbiguous, code: response.CodeConflict, key: "error.rule_ambiguous"},
	{target: service.ErrRuleInvalid, code: response.CodeBadRequest, key: "error.settlement_invalid"},
}

func respondSettlementError(c *gin.Context, err error) {
	respondWithMappedError(c, err, settlementErrorRules, response.CodeInternal, "error.settlement_record_failed")
}
