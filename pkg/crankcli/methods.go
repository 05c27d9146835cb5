package crankcli

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
)

func invoke[T any](c *Client, method common.UpdateType, message any) (*T, error) {
	resp, err := c.invoke(method, message)
	if err != nil {
		return nil, err
	}
	var d T
	return &d, json.Unmarshal(resp, &d)
}

// Status fetches the daemon's current scheduling snapshot.
func (c *Client) Status() (*common.StatusResponse, error) {
	return invoke[common.StatusResponse](c, common.UPDATE_STATUS, nil)
}

// Watch subscribes the connection to round updates and returns the initial
// status. Callers then register a RoundHandler and run Listen.
func (c *Client) Watch() (*common.StatusResponse, error) {
	return invoke[common.StatusResponse](c, common.UPDATE_WATCH, nil)
}

// History queries the daemon's scheduling journal.
func (c *Client) History(params *common.HistoryParams) (*common.HistoryResponse, error) {
	if params == nil {
		params = &common.HistoryParams{}
	}
	return invoke[common.HistoryResponse](c, common.UPDATE_HISTORY, params)
}

// Pause suspends trigger evaluation for one automation.
func (c *Client) Pause(ref string) (string, error) {
	msg, err := invoke[string](c, common.UPDATE_PAUSE, &common.RefParams{Ref: ref})
	if err != nil {
		return "", err
	}
	return *msg, nil
}

// Resume lifts a local pause.
func (c *Client) Resume(ref string) (string, error) {
	msg, err := invoke[string](c, common.UPDATE_RESUME, &common.RefParams{Ref: ref})
	if err != nil {
		return "", err
	}
	return *msg, nil
}

// Flush clears an automation's backoff and in-flight state.
func (c *Client) Flush(ref string) (string, error) {
	msg, err := invoke[string](c, common.UPDATE_FLUSH, &common.RefParams{Ref: ref})
	if err != nil {
		return "", err
	}
	return *msg, nil
}

// StopDaemon asks the daemon to shut down.
func (c *Client) StopDaemon() (string, error) {
	msg, err := invoke[string](c, common.UPDATE_STOP, nil)
	if err != nil {
		return "", err
	}
	return *msg, nil
}

// Version reports the daemon's build information.
func (c *Client) Version() (*common.VersionResponse, error) {
	return invoke[common.VersionResponse](c, common.UPDATE_VERSION, nil)
}
