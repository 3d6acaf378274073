// Package devicectl implements the client-side installation CLI: it owns the
// local device id and asks the API whether this installation may be used.
package devicectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/infrastructure/deviceid"
	"github.com/bizops/backend/internal/interfaces/http/dto"
	"github.com/bizops/backend/internal/interfaces/http/middleware"
	"github.com/spf13/cobra"
)

const admissionPath = "/api/v1/devices/admission"

// ErrNotAllowed is returned by check when the server did not admit the device
var ErrNotAllowed = errors.New("device not allowed")

type options struct {
	stateFile string
	server    string
	token     string
	userAgent string
	name      string
	timeout   time.Duration
	jsonOut   bool
}

// NewRootCommand builds the devicectl command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "devicectl",
		Short:         "Manage this installation's device identity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.stateFile, "state-file", "", "device id file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.userAgent, "user-agent", defaultUserAgent(), "user agent used to classify this installation")

	cmd.AddCommand(newIDCommand(opts), newCheckCommand(opts), newForgetCommand(opts))
	return cmd
}

func newIDCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print the device id, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			identity := device.ResolveIdentity(store, opts.userAgent)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), identity.DeviceID)
			return err
		},
	}
}

func newCheckCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask the server whether this installation may be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			identity := device.ResolveIdentity(store, opts.userAgent)
			if opts.name != "" {
				identity.DeviceName = opts.name
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			decision, err := requestAdmission(ctx, opts, identity)
			if err != nil {
				return err
			}
			if err := printDecision(cmd.OutOrStdout(), decision, opts.jsonOut); err != nil {
				return err
			}
			if !decision.Allowed {
				return ErrNotAllowed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token of the signed-in user")
	cmd.Flags().StringVar(&opts.name, "name", "", "device name shown to administrators")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the raw decision as JSON")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newForgetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete the local device id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			if err := store.Forget(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", store.Path())
			return err
		},
	}
}

func (o *options) store() (*deviceid.FileStore, error) {
	if o.stateFile != "" {
		return deviceid.NewFileStore(o.stateFile), nil
	}
	path, err := deviceid.DefaultPath()
	if err != nil {
		return nil, err
	}
	return deviceid.NewFileStore(path), nil
}

func requestAdmission(ctx context.Context, opts *options, identity device.Identity) (*dto.AdmissionResponse, error) {
	body, err := json.Marshal(dto.AdmissionRequest{DeviceName: identity.DeviceName})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(opts.server, "/") + admissionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", opts.userAgent)
	req.Header.Set(middleware.DeviceIDHeader, identity.DeviceID)
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+opts.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var decision dto.AdmissionResponse
	envelope := dto.Response{Data: &decision}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		if envelope.Error != nil {
			return nil, fmt.Errorf("server rejected request (%s): %s: %s", resp.Status, envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("server rejected request: %s", resp.Status)
	}
	return &decision, nil
}

func printDecision(w io.Writer, d *dto.AdmissionResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	status := "allowed"
	if !d.Allowed {
		status = "not allowed"
	}
	if _, err := fmt.Fprintf(w, "%s (%s) device=%s type=%s\n", status, d.Outcome, d.DeviceID, d.DeviceType); err != nil {
		return err
	}
	if d.Plan != "" {
		if _, err := fmt.Fprintf(w, "plan=%s desktop=%d/%d mobile=%d/%d\n", d.Plan,
			d.ActiveCount.Desktop, d.Limits.Desktop, d.ActiveCount.Mobile, d.Limits.Mobile); err != nil {
			return err
		}
	}
	if d.Error != "" {
		_, err := fmt.Fprintln(w, d.Error)
		return err
	}
	return nil
}

// defaultUserAgent names the host platform so the server classifies the
// installation the way it would a desktop browser on the same machine.
func defaultUserAgent() string {
	platform := map[string]string{
		"windows": "Windows NT 10.0",
		"darwin":  "Macintosh",
		"linux":   "X11; Linux",
	}[runtime.GOOS]
	if platform == "" {
		platform = runtime.GOOS
	}
	return fmt.Sprintf("devicectl/1.0 (%s)", platform)
}
