package requestdata

import (
  "context"
  "github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

// DeviceInfo is resolved from request headers at the transport edge and
// stamped onto every event in the batch.
type DeviceInfo struct {
  DeviceType string
  Browser    string
  OS         string
  IPAddress  string
}

type RequestData struct {
  TokenString string
  UserID      uuid.UUID
  Role        string
  SessionID   string
  Device      DeviceInfo
}
