package workflowerrors

import goerrors "github.com/go-errors/errors"

func stack(skip int) string {
	goerr := goerrors.Wrap("", skip+1)
	return string(goerr.Stack())
}
