package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/api/clients"
	"github.com/nextdotid/sdk-go/cmd/flags"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/nextdotid/sdk-go/kvservice"
	"github.com/urfave/cli/v2"
)

var flagPatch = &cli.StringFlag{
	Name:     "patch",
	Required: true,
	Usage:    "JSON merge document to apply: fields overwrite, nulls delete",
}

var flagAvatar = &cli.StringFlag{
	Name:  "avatar",
	Usage: "avatar public key to query, hex-encoded compressed or uncompressed",
}

const usage string = "Manage the metadata a NextID avatar stores for its identities"

func main() {
	app := &cli.App{
		Name:  "kv-client",
		Usage: usage,
		Flags: []cli.Flag{
			flags.KVServiceAddrFlag,
		},
		Commands: []*cli.Command{
			{
				Name:        "patch",
				Usage:       "Apply a merge patch to an identity's metadata",
				Description: "Requests a challenge for the patch, signs it with the avatar key and submits it.",
				Flags: []cli.Flag{
					flags.SecretKeyFlag,
					flags.PlatformFlag,
					flags.IdentityFlag,
					flagPatch,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.Patch(cCtx.Context,
						interfaces.Platform(cCtx.String(flags.PlatformFlag.Name)),
						cCtx.String(flags.IdentityFlag.Name),
						json.RawMessage(cCtx.String(flagPatch.Name)))
				},
			},
			{
				Name:  "query",
				Usage: "List metadata by avatar",
				Flags: []cli.Flag{
					flagAvatar,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.QueryByAvatar(cCtx.Context, cCtx.String(flagAvatar.Name))
				},
			},
			{
				Name:  "query-identity",
				Usage: "List metadata by platform identity",
				Flags: []cli.Flag{
					flags.PlatformFlag,
					flags.IdentityFlag,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.QueryByIdentity(cCtx.Context,
						interfaces.Platform(cCtx.String(flags.PlatformFlag.Name)),
						cCtx.String(flags.IdentityFlag.Name))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type Client struct {
	Avatar   *cryptoutils.Secp256k1KeyPair
	Provider api.KVGateway
}

func NewClientConfig(cCtx *cli.Context) (*Client, error) {
	client := &Client{
		Provider: &clients.KVServiceClient{ServerAddr: cCtx.String(flags.KVServiceAddrFlag.Name)},
	}

	if secHex := cCtx.String(flags.SecretKeyFlag.Name); secHex != "" {
		avatar, err := cryptoutils.NewKeyPairFromSecretHex(secHex)
		if err != nil {
			return nil, fmt.Errorf("could not parse avatar secret key: %w", err)
		}
		client.Avatar = avatar
	}
	return client, nil
}

func (c *Client) Patch(ctx context.Context, platform interfaces.Platform, identity string, patch json.RawMessage) error {
	if c.Avatar == nil {
		return fmt.Errorf("avatar-secret-key is required to patch metadata")
	}

	procedure, err := kvservice.NewProcedure(c.Provider, platform, identity, c.Avatar, patch)
	if err != nil {
		return err
	}
	if err := procedure.RequestChallenge(ctx); err != nil {
		return fmt.Errorf("could not obtain challenge: %w", err)
	}

	challenge, _ := procedure.Challenge()
	avatarSig, err := c.Avatar.PersonalSign(challenge)
	if err != nil {
		return fmt.Errorf("could not sign challenge: %w", err)
	}
	if err := procedure.Submit(ctx, avatarSig); err != nil {
		return fmt.Errorf("could not submit patch: %w", err)
	}

	uuid, _ := procedure.UUID()
	fmt.Printf("Registry applied the patch, uuid %s\n", uuid)
	return nil
}

func (c *Client) QueryByAvatar(ctx context.Context, avatarHex string) error {
	avatar := c.Avatar
	if avatarHex != "" {
		parsed, err := cryptoutils.NewKeyPairFromPublicHex(avatarHex)
		if err != nil {
			return fmt.Errorf("could not parse avatar public key: %w", err)
		}
		avatar = parsed
	}
	if avatar == nil {
		return fmt.Errorf("either avatar or avatar-secret-key is required")
	}

	resp, err := kvservice.FindByAvatar(ctx, c.Provider, avatar)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func (c *Client) QueryByIdentity(ctx context.Context, platform interfaces.Platform, identity string) error {
	resp, err := kvservice.FindByIdentity(ctx, c.Provider, platform, identity)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(body any) error {
	encoded, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
