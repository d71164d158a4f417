package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceStatus_MarkUnavailable(t *testing.T) {
	var st ServiceStatus
	st.MarkUnavailable(FieldCPU, errors.New("metrics source down"))
	st.MarkUnavailable(FieldMemory, ErrNoDatapoint)

	require.Len(t, st.Unavailable, 2)
	require.Contains(t, st.Unavailable[FieldCPU], "metrics source down")
	require.Contains(t, st.Unavailable[FieldMemory], "no datapoint")
}

func TestServiceID_String(t *testing.T) {
	require.Equal(t, "mlserve-cluster/mlserve-api", ServiceID{Cluster: "mlserve-cluster", Service: "mlserve-api"}.String())
}
