package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"localagent/pkg/capability"
)

var passphraseParam = capability.Optional("passphrase_env", "environment variable holding a passphrase")

func cryptoCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("encrypt_file", "Encrypt a file with age to recipients or a passphrase",
			capability.Signature{
				pathParam,
				capability.Optional("recipient", "age public key, one per line"),
				passphraseParam,
				outputParam,
			},
			func(ctx context.Context, params capability.Params) error {
				path, err := params.String("path")
				if err != nil {
					return err
				}
				recipients, err := recipientsFor(params)
				if err != nil {
					return err
				}
				output, err := outputPath(params, path, withSuffix(".age"))
				if err != nil {
					return err
				}
				written, err := transformFile(path, output, func(dst io.Writer, src io.Reader) error {
					writer, err := age.Encrypt(dst, recipients...)
					if err != nil {
						return fmt.Errorf("creating age encryptor: %w", err)
					}
					if _, err := io.Copy(writer, src); err != nil {
						return fmt.Errorf("writing plaintext to age encryptor: %w", err)
					}
					return writer.Close()
				})
				if err != nil {
					return fmt.Errorf("encrypt '%s': %w", path, err)
				}
				deps.Logger.InfoContext(ctx, "Encrypted file", "path", path, "output", output, "bytes", written)
				return nil
			}),
		describe("decrypt_file", "Decrypt an age file with an identity file or a passphrase",
			capability.Signature{
				pathParam,
				capability.Optional("identity_file", "file of age identities"),
				passphraseParam,
				outputParam,
			},
			func(ctx context.Context, params capability.Params) error {
				path, err := params.String("path")
				if err != nil {
					return err
				}
				identities, err := identitiesFor(params)
				if err != nil {
					return err
				}
				output, err := outputPath(params, path, withoutSuffix(".age"))
				if err != nil {
					return err
				}
				written, err := transformFile(path, output, func(dst io.Writer, src io.Reader) error {
					reader, err := age.Decrypt(src, identities...)
					if err != nil {
						return fmt.Errorf("decrypting: %w", err)
					}
					_, err = io.Copy(dst, reader)
					return err
				})
				if err != nil {
					return fmt.Errorf("decrypt '%s': %w", path, err)
				}
				deps.Logger.InfoContext(ctx, "Decrypted file", "path", path, "output", output, "bytes", written)
				return nil
			}),
	}
}

func recipientsFor(params capability.Params) ([]age.Recipient, error) {
	keys, err := params.StringOr("recipient", "")
	if err != nil {
		return nil, err
	}
	passphrase, err := passphraseFrom(params)
	if err != nil {
		return nil, err
	}
	switch {
	case keys != "" && passphrase != "":
		return nil, errors.New("recipient and passphrase_env are mutually exclusive")
	case keys != "":
		recipients, err := age.ParseRecipients(strings.NewReader(keys))
		if err != nil {
			return nil, fmt.Errorf("parsing recipients: %w", err)
		}
		return recipients, nil
	case passphrase != "":
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			return nil, err
		}
		return []age.Recipient{recipient}, nil
	default:
		return nil, errors.New("one of recipient or passphrase_env is required")
	}
}

func identitiesFor(params capability.Params) ([]age.Identity, error) {
	identityFile, err := params.StringOr("identity_file", "")
	if err != nil {
		return nil, err
	}
	passphrase, err := passphraseFrom(params)
	if err != nil {
		return nil, err
	}
	switch {
	case identityFile != "" && passphrase != "":
		return nil, errors.New("identity_file and passphrase_env are mutually exclusive")
	case identityFile != "":
		file, err := os.Open(identityFile)
		if err != nil {
			return nil, fmt.Errorf("open identity file: %w", err)
		}
		defer file.Close()
		identities, err := age.ParseIdentities(file)
		if err != nil {
			return nil, fmt.Errorf("parsing identities: %w", err)
		}
		return identities, nil
	case passphrase != "":
		identity, err := age.NewScryptIdentity(passphrase)
		if err != nil {
			return nil, err
		}
		return []age.Identity{identity}, nil
	default:
		return nil, errors.New("one of identity_file or passphrase_env is required")
	}
}

// passphraseFrom resolves passphrase_env. The passphrase itself never
// travels through the mailbox.
func passphraseFrom(params capability.Params) (string, error) {
	name, err := params.StringOr("passphrase_env", "")
	if err != nil || name == "" {
		return "", err
	}
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable '%s' is not set", name)
	}
	return value, nil
}
