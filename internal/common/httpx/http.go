// Package httpx carries the shared request/response plumbing for the HTTP
// surface: JSON body decoding, a RequestHandler signature that returns either
// a Response or an error, and the wrapper that maps apperrors status codes
// onto the wire.
package httpx

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

type Response struct {
	StatusCode  int
	Location    string // set for http.StatusCreated/Accepted responses
	Response    any
	ContentType string
}

type RequestHandler func(r *http.Request) (*Response, error)

type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}

func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				statusCode := appErr.StatusCode()
				if statusCode == 0 {
					statusCode = http.StatusInternalServerError
				}
				(&Error{
					StatusCode:  statusCode,
					Description: appErr.Error(),
				}).Send(w)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		if rsp.ContentType != "application/json" {
			ErrApplicationError("unsupported response type").Send(w)
			return
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
	}
}

func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any, location ...string) {
	w.Header().Set("Content-Type", "application/json")
	if len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	if rsp == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to encode response")
	}
}
