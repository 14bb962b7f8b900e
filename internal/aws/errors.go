package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the AWS API error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// HasCode reports whether err is an AWS API error with one of the codes.
func HasCode(err error, codes ...string) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// Hint returns operator guidance for well-known AWS failures, or "".
func Hint(err error) string {
	code := ErrorCode(err)
	switch {
	case code == "ExpiredToken" || code == "ExpiredTokenException" || code == "RequestExpired":
		return "AWS session token expired. Refresh credentials or run 'aws sso login'"
	case strings.HasPrefix(code, "AccessDenied") || code == "UnauthorizedOperation" || code == "AuthorizationError":
		return "Insufficient permissions. Apply the IAM policy from 'awsinventory init' to your role/user"
	case code == "InvalidClientTokenId" || code == "SignatureDoesNotMatch" || code == "UnrecognizedClientException":
		return "Credentials were rejected. Check the access key of the selected profile"
	case strings.HasPrefix(code, "Throttling") || code == "RequestLimitExceeded" || code == "TooManyRequestsException":
		return "AWS API rate limit hit. Retry with lower --concurrency or fewer regions"
	case code == "OptInRequired" || code == "AuthFailure":
		return "Region is not enabled for this account. Restrict --regions"
	}

	// Credential resolution fails before any API call is made.
	msg := err.Error()
	if strings.Contains(msg, "failed to refresh cached credentials") || strings.Contains(msg, "no EC2 IMDS role found") {
		return "Configure AWS credentials: set AWS_PROFILE, AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, or run 'aws configure'"
	}
	return ""
}
